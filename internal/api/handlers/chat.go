package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

// ChatService is the part of chat.Service the ask endpoint needs.
type ChatService interface {
	Answer(ctx context.Context, conv []llm.Message) (string, error)
	Stream(ctx context.Context, conv []llm.Message) (llm.FragmentStream, error)
}

type ChatHandler struct {
	chatService ChatService
	log         zerolog.Logger
}

func NewChatHandler(chatService ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

type askMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Messages []askMessage `json:"messages"`
	Stream   *bool        `json:"stream,omitempty"`
}

// streamed reports whether the caller wants the plain-text stream. Browsers
// send no flag and read the body incrementally, so absent means true.
func (r askRequest) streamed() bool {
	return r.Stream == nil || *r.Stream
}

type askResponse struct {
	Message askMessage `json:"message"`
}

// Ask handles POST /api/ai/ask.
//
// By default the body is the plain-text concatenation of fragments, flushed
// one by one. With "stream": false the retrieval-augmented answer is returned
// as {"message":{"role":"assistant","content":...}}.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	conv := toConversation(req.Messages)

	if req.streamed() {
		h.stream(w, r, conv)
		return
	}

	answer, err := h.chatService.Answer(r.Context(), conv)
	if err != nil {
		h.log.Warn().Err(err).Msg("ask failed")
		writeDomainError(w, err, "ask failed")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Message: askMessage{Role: string(llm.RoleAssistant), Content: answer}})
}

// stream pulls the first fragment before committing the status line so that
// an upfront provider failure still becomes a JSON error. Failures after the
// first byte can only end the body early.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, conv []llm.Message) {
	stream, err := h.chatService.Stream(r.Context(), conv)
	if err != nil {
		writeDomainError(w, err, "stream failed")
		return
	}
	defer stream.Close() //nolint:errcheck

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			h.log.Warn().Err(err).Msg("stream failed before first fragment")
			writeDomainError(w, err, "stream failed")
			return
		}
		w.Header().Set(headerContentType, mimeText)
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set(headerContentType, mimeText)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for {
		if _, err := io.WriteString(w, stream.Fragment()); err != nil {
			h.log.Debug().Err(err).Msg("client went away during stream")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if !stream.Next() {
			break
		}
	}
	if err := stream.Err(); err != nil {
		h.log.Warn().Err(err).Msg("stream interrupted")
	}
}

func toConversation(msgs []askMessage) []llm.Message {
	conv := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		conv = append(conv, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return conv
}
