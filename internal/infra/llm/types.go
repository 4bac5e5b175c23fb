// Package llm is the provider layer of the gateway: message types, provider
// selection (direct OpenAI vs. Azure-hosted), and the openai-go adapter that
// performs chat completions, streaming, retrieval responses and vector-store
// administration.
package llm

import "fmt"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    Role
	Content string
}

// ValidateConversation rejects empty conversations and unknown roles with ErrInvalidArgument.
func ValidateConversation(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: conversation is empty", ErrInvalidArgument)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidArgument, i, m.Role)
		}
	}
	return nil
}

// ChatRequest is the input for chat completions, streamed or not.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float64 // omitted from the wire request when zero
	MaxTokens   int     // omitted from the wire request when zero
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // First choice text; "" when the provider returned none.
	StopReason string // "stop" | "length" | "content_filter" | ...
	Tokens     int    // Total tokens consumed (prompt + completion).
}

// RetrievalRequest is a responses-API call with file_search bound to vector stores.
type RetrievalRequest struct {
	Model          string
	Messages       []Message
	VectorStoreIDs []string
	Temperature    float64
}

// ToolCall is one non-message output item of a retrieval response.
type ToolCall struct {
	Kind   string // output item type, e.g. "file_search_call"
	Result string // human-readable result; "" when the call produced nothing
}

// RetrievalResponse is the output of Respond.
type RetrievalResponse struct {
	OutputText string
	ToolCalls  []ToolCall
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID       string       // model name or Azure deployment
	Provider string       // "openai" | "azure-openai"
	Kind     ProviderKind // ProviderDirect | ProviderHosted
}
