package llm

import "context"

// LLMProvider is the model-agnostic chat surface. *OpenAIProvider implements it
// for both the direct and the Azure-hosted API.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatCompletionStream opens a streaming chat completion. Provider errors
	// surface from the returned stream's Err, not from this call.
	ChatCompletionStream(ctx context.Context, req ChatRequest) (FragmentStream, error)

	// Respond performs a responses-API call with retrieval tools attached.
	Respond(ctx context.Context, req RetrievalRequest) (*RetrievalResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta
}

// KnowledgeBackend manages provider-hosted retrieval stores.
type KnowledgeBackend interface {
	// CreateVectorStore creates a named store and returns its id.
	CreateVectorStore(ctx context.Context, name string) (string, error)

	// UploadFile uploads content as filename, attaches it to storeID and blocks
	// until ingestion reaches a terminal state. Returns the provider file id.
	UploadFile(ctx context.Context, storeID, filename string, content []byte) (string, error)
}

// Provider is everything a single resolved backend can do.
type Provider interface {
	LLMProvider
	KnowledgeBackend
}

// FragmentStream is a pull-based sequence of assistant text fragments.
//
//	for s.Next() {
//		use(s.Fragment())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Next blocks until the next non-empty fragment arrives or the provider signals
// completion. Close releases the underlying connection and may be called at any
// time, including before the sequence is exhausted.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}
