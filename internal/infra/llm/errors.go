package llm

import "errors"

var (
	// ErrInvalidArgument marks caller errors: empty conversation, unknown role,
	// empty store name or id. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderCallFailed wraps network, auth and provider-side failures of
	// completion, streaming and retrieval calls.
	ErrProviderCallFailed = errors.New("provider call failed")

	// ErrUploadFailed wraps provider-side failures while ingesting a file into a store.
	ErrUploadFailed = errors.New("upload failed")
)
