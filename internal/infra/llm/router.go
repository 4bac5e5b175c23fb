// Provider selection. A ProviderConfig is resolved from the immutable Settings
// snapshot on every request; nothing about the choice is cached.
package llm

import (
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultDirectModel is the model used whenever the direct API is selected.
	DefaultDirectModel = "gpt-5"

	// DefaultAzureAPIVersion is sent as api-version on Azure chat completions.
	DefaultAzureAPIVersion = "2024-02-15-preview"

	// DefaultAzureRetrievalAPIVersion is sent on Azure responses, files and
	// vector_stores calls. Those routes do not exist under the chat version.
	DefaultAzureRetrievalAPIVersion = "2025-03-01-preview"
)

// ProviderKind tags which API a ProviderConfig targets.
type ProviderKind string

const (
	ProviderDirect ProviderKind = "direct"
	ProviderHosted ProviderKind = "hosted"
)

// Settings is the raw provider configuration, as loaded by internal/infra/config.
type Settings struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string

	AzureRetrievalAPIVersion string
}

// ProviderConfig is a resolved provider: either DirectProvider or HostedProvider.
// The unexported method closes the set of variants.
type ProviderConfig interface {
	Kind() ProviderKind
	Model() string
	clientOptions() []option.RequestOption
	// retrievalOptions are appended to responses and knowledge calls.
	retrievalOptions() []option.RequestOption
}

// DirectProvider targets api.openai.com (or BaseURL when set).
type DirectProvider struct {
	APIKey  string
	BaseURL string
}

func (DirectProvider) Kind() ProviderKind { return ProviderDirect }
func (DirectProvider) Model() string      { return DefaultDirectModel }

func (d DirectProvider) clientOptions() []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(d.APIKey)}
	if d.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(d.BaseURL))
	}
	return opts
}

func (DirectProvider) retrievalOptions() []option.RequestOption { return nil }

// HostedProvider targets an Azure OpenAI resource; the deployment is the model id.
type HostedProvider struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string

	// RetrievalAPIVersion overrides APIVersion for responses and knowledge calls.
	RetrievalAPIVersion string
}

func (HostedProvider) Kind() ProviderKind { return ProviderHosted }
func (h HostedProvider) Model() string    { return h.Deployment }

func (h HostedProvider) clientOptions() []option.RequestOption {
	version := h.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	return []option.RequestOption{
		azure.WithEndpoint(h.Endpoint, version),
		azure.WithAPIKey(h.APIKey),
	}
}

func (h HostedProvider) retrievalOptions() []option.RequestOption {
	version := h.RetrievalAPIVersion
	if version == "" {
		version = DefaultAzureRetrievalAPIVersion
	}
	// WithQuery replaces the api-version added by azure.WithEndpoint.
	return []option.RequestOption{option.WithQuery("api-version", version)}
}

// SelectProvider picks Hosted iff the Azure key, endpoint and deployment are all
// set, Direct otherwise. A missing direct key is not an error here; the provider
// rejects the call later.
func SelectProvider(s Settings) ProviderConfig {
	if s.AzureAPIKey != "" && s.AzureEndpoint != "" && s.AzureDeployment != "" {
		return HostedProvider{
			APIKey:     s.AzureAPIKey,
			Endpoint:   s.AzureEndpoint,
			Deployment: s.AzureDeployment,
			APIVersion: s.AzureAPIVersion,

			RetrievalAPIVersion: s.AzureRetrievalAPIVersion,
		}
	}
	return DirectProvider{APIKey: s.OpenAIAPIKey, BaseURL: s.OpenAIBaseURL}
}

// Factory builds a Provider for a resolved config.
type Factory func(ProviderConfig) Provider

// Router resolves a fresh Provider for every call from its settings snapshot.
type Router struct {
	settings Settings
	factory  Factory
}

// NewRouter creates a Router. A nil factory builds *OpenAIProvider instances.
func NewRouter(settings Settings, factory Factory) *Router {
	if factory == nil {
		factory = func(cfg ProviderConfig) Provider { return NewOpenAIProvider(cfg) }
	}
	return &Router{settings: settings, factory: factory}
}

// Selected returns the ProviderConfig the next call will use.
func (r *Router) Selected() ProviderConfig {
	return SelectProvider(r.settings)
}

// Route returns the chat provider for the current request.
func (r *Router) Route() LLMProvider {
	return r.factory(r.Selected())
}

// Backend returns the knowledge backend for the current request.
func (r *Router) Backend() KnowledgeBackend {
	return r.factory(r.Selected())
}
