// OpenAI adapter. One *OpenAIProvider wraps one openai-go client configured for
// either the direct API or Azure. Endpoints used:
//   - ChatCompletion, ChatCompletionStream: POST chat/completions
//   - Respond (file_search tool): POST responses
//   - CreateVectorStore: POST vector_stores
//   - UploadFile: POST files, POST/GET vector_stores/{id}/file_batches
package llm

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	// defaultPollIntervalMs paces file-batch status polling.
	defaultPollIntervalMs = 500

	outputItemMessage  = "message"
	outputContentText  = "output_text"
	includeFileResults = "file_search_call.results"

	// ToolKindFileSearch is the output item type of a file_search invocation.
	ToolKindFileSearch = "file_search_call"
)

// OpenAIProvider implements Provider against the OpenAI (or Azure OpenAI) API.
type OpenAIProvider struct {
	config ProviderConfig
	client openai.Client
}

// NewOpenAIProvider builds a client for cfg. SDK retries are disabled: every
// failure reaches the caller after exactly one attempt. Extra options are
// applied last (tests use them to point at a fake server).
func NewOpenAIProvider(cfg ProviderConfig, opts ...option.RequestOption) *OpenAIProvider {
	all := append(cfg.clientOptions(), option.WithMaxRetries(0))
	all = append(all, opts...)
	return &OpenAIProvider{config: cfg, client: openai.NewClient(all...)}
}

// ─── LLMProvider implementation ─────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat completion.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.chatParams(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %s chat completion: %w", ErrProviderCallFailed, p.config.Kind(), err)
	}

	resp := &ChatResponse{Tokens: int(completion.Usage.TotalTokens)}
	if len(completion.Choices) > 0 {
		resp.Content = completion.Choices[0].Message.Content
		resp.StopReason = string(completion.Choices[0].FinishReason)
	}
	return resp, nil
}

// ChatCompletionStream opens a streaming chat completion.
func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (FragmentStream, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.chatParams(req))
	return &chatStream{stream: stream, kind: p.config.Kind()}, nil
}

// Respond sends the conversation to the responses API with file_search bound to
// req.VectorStoreIDs and returns the aggregated output text plus tool-call traces.
func (p *OpenAIProvider) Respond(ctx context.Context, req RetrievalRequest) (*RetrievalResponse, error) {
	input := make(responses.ResponseInputParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Content, easyRole(m.Role)))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(p.model(req.Model)),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if len(req.VectorStoreIDs) > 0 {
		params.Tools = []responses.ToolUnionParam{{
			OfFileSearch: &responses.FileSearchToolParam{VectorStoreIDs: req.VectorStoreIDs},
		}}
		params.Include = []responses.ResponseIncludable{responses.ResponseIncludable(includeFileResults)}
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := p.client.Responses.New(ctx, params, p.config.retrievalOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s responses: %w", ErrProviderCallFailed, p.config.Kind(), err)
	}

	out := &RetrievalResponse{}
	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case outputItemMessage:
			for _, c := range item.AsMessage().Content {
				if c.Type == outputContentText {
					text.WriteString(c.Text)
				}
			}
		case ToolKindFileSearch:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Kind:   item.Type,
				Result: fileSearchResult(item.AsFileSearchCall()),
			})
		default:
			out.ToolCalls = append(out.ToolCalls, ToolCall{Kind: item.Type})
		}
	}
	out.OutputText = text.String()
	return out, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *OpenAIProvider) ModelInfo() ModelMeta {
	name := "openai"
	if p.config.Kind() == ProviderHosted {
		name = "azure-openai"
	}
	return ModelMeta{ID: p.config.Model(), Provider: name, Kind: p.config.Kind()}
}

// ─── KnowledgeBackend implementation ────────────────────────────────────────

// CreateVectorStore creates a named vector store.
func (p *OpenAIProvider) CreateVectorStore(ctx context.Context, name string) (string, error) {
	store, err := p.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String(name),
	}, p.config.retrievalOptions()...)
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	return store.ID, nil
}

// UploadFile uploads content with purpose "assistants", attaches it to storeID in
// a single-file batch and polls the batch until it is no longer in progress.
func (p *OpenAIProvider) UploadFile(ctx context.Context, storeID, filename string, content []byte) (string, error) {
	file, err := p.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(content), filename, contentTypeFor(filename)),
		Purpose: openai.FilePurposeAssistants,
	}, p.config.retrievalOptions()...)
	if err != nil {
		return "", fmt.Errorf("upload file %q: %w", filename, err)
	}

	batch, err := p.client.VectorStores.FileBatches.NewAndPoll(ctx, storeID, openai.VectorStoreFileBatchNewParams{
		FileIDs: []string{file.ID},
	}, defaultPollIntervalMs, p.config.retrievalOptions()...)
	if err != nil {
		return "", fmt.Errorf("attach file %s to %s: %w", file.ID, storeID, err)
	}
	if status := string(batch.Status); status != "completed" {
		return "", fmt.Errorf("file batch %s for %s ended with status %q", batch.ID, file.ID, status)
	}
	return file.ID, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (p *OpenAIProvider) model(override string) string {
	if override != "" {
		return override
	}
	return p.config.Model()
}

// chatParams converts a ChatRequest into wire params, preserving message order.
func (p *OpenAIProvider) chatParams(req ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model(req.Model)),
		Messages: toChatMessages(req.Messages),
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens != 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			out[i] = openai.UserMessage(m.Content)
		}
	}
	return out
}

func easyRole(r Role) responses.EasyInputMessageRole {
	switch r {
	case RoleSystem:
		return responses.EasyInputMessageRoleSystem
	case RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	default:
		return responses.EasyInputMessageRoleUser
	}
}

// fileSearchResult lists distinct retrieved filenames, in retrieval order.
func fileSearchResult(call responses.ResponseFileSearchToolCall) string {
	seen := make(map[string]struct{}, len(call.Results))
	names := make([]string, 0, len(call.Results))
	for _, r := range call.Results {
		name := r.Filename
		if name == "" {
			name = r.FileID
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ─── streaming ───────────────────────────────────────────────────────────────

// chatStream adapts an SSE chunk stream to FragmentStream, skipping chunks that
// carry no content (role-only deltas, finish markers, usage frames).
type chatStream struct {
	stream   *ssestream.Stream[openai.ChatCompletionChunk]
	kind     ProviderKind
	fragment string
	err      error
	closed   bool
}

func (s *chatStream) Next() bool {
	s.fragment = ""
	if s.closed || s.err != nil {
		return false
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.fragment = delta
			return true
		}
	}
	if err := s.stream.Err(); err != nil {
		s.err = fmt.Errorf("%w: %s chat completion stream: %w", ErrProviderCallFailed, s.kind, err)
	}
	return false
}

func (s *chatStream) Fragment() string { return s.fragment }

func (s *chatStream) Err() error { return s.err }

func (s *chatStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}
