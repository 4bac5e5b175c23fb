// Package mcpserver exposes the gateway over the Model Context Protocol.
// It registers a single "ask" tool backed by the retrieval-augmented answerer.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

// ToolAsk is the name of the registered tool.
const ToolAsk = "ask"

// Answerer is the part of chat.Service the ask tool needs.
type Answerer interface {
	Answer(ctx context.Context, conv []llm.Message) (string, error)
}

// AskInput is the ask tool's argument object.
type AskInput struct {
	Prompt string `json:"prompt" jsonschema:"the user question"`
	System string `json:"system,omitempty" jsonschema:"optional system instruction placed before the question"`
}

// New builds an MCP server named name with the ask tool registered.
func New(name, version string, answerer Answerer, log zerolog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question with the configured model, grounded on the knowledge store when one is configured.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
		conv := buildConversation(in)
		answer, err := answerer.Answer(ctx, conv)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolAsk).Msg("mcp tool call failed")
			return toolError(err), nil, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: answer}}}, nil, nil
	})

	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func buildConversation(in AskInput) []llm.Message {
	var conv []llm.Message
	if s := strings.TrimSpace(in.System); s != "" {
		conv = append(conv, llm.Message{Role: llm.RoleSystem, Content: s})
	}
	if strings.TrimSpace(in.Prompt) != "" {
		conv = append(conv, llm.Message{Role: llm.RoleUser, Content: in.Prompt})
	}
	return conv
}

// toolError reports a failed call inside the result so the client model can
// see it. Provider details are not echoed.
func toolError(err error) *mcp.CallToolResult {
	msg := "internal error"
	switch {
	case errors.Is(err, llm.ErrInvalidArgument):
		msg = "prompt is required"
	case errors.Is(err, llm.ErrProviderCallFailed):
		msg = "provider call failed"
	}
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}
