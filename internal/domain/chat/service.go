// Package chat is the LLM-interaction core: plain completions, streamed
// completions and retrieval-augmented answers with fallback.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

// RetrievalInstruction is prepended as a system message on enriched requests.
const RetrievalInstruction = "Answer using the retrieved context when it is available. " +
	"If the knowledge base has nothing relevant, answer from general knowledge instead of refusing."

// Answer states, as reported to the Observer.
const (
	StateNoRetrieval = "no_retrieval"
	StateEnriched    = "enriched"
	StateFallback    = "fallback"
)

// Fallback reasons.
const (
	ReasonProviderError = "error"
	ReasonEmptyOutput   = "empty_output"
)

const noResult = "no result"

// errRetrievalDegraded marks an enriched attempt that must fall back to a
// plain completion. It never leaves this package.
var errRetrievalDegraded = errors.New("retrieval degraded")

// ProviderRouter resolves the provider for the current request.
type ProviderRouter interface {
	Route() llm.LLMProvider
}

// Observer receives call outcomes. *metrics.Metrics implements it.
type Observer interface {
	RecordProviderCall(operation, provider string, err error, duration time.Duration)
	RecordAnswer(state string)
	RecordFallback(reason string)
	RecordFragment()
}

// Config is the per-process chat configuration.
type Config struct {
	// VectorStoreID enables the enriched path when non-empty.
	VectorStoreID string
	// Temperature is forwarded to the provider when non-zero.
	Temperature float64
}

// Service implements Complete, Stream and Answer.
type Service struct {
	router   ProviderRouter
	cfg      Config
	log      zerolog.Logger
	observer Observer
}

// NewService creates a chat Service. A nil observer discards outcomes.
func NewService(router ProviderRouter, cfg Config, log zerolog.Logger, observer Observer) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{router: router, cfg: cfg, log: log, observer: observer}
}

// RetrievalEnabled reports whether Answer will attempt the enriched path.
func (s *Service) RetrievalEnabled() bool {
	return s.cfg.VectorStoreID != ""
}

// Complete performs one non-streaming completion and returns the first choice
// text ("" when the provider returned none).
func (s *Service) Complete(ctx context.Context, conv []llm.Message) (string, error) {
	if err := llm.ValidateConversation(conv); err != nil {
		return "", err
	}

	p := s.router.Route()
	start := time.Now()
	resp, err := p.ChatCompletion(ctx, llm.ChatRequest{Messages: conv, Temperature: s.cfg.Temperature})
	s.observer.RecordProviderCall("complete", p.ModelInfo().Provider, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Stream opens a streamed completion. Provider failures surface from the
// returned stream's Err; callers must Close it.
func (s *Service) Stream(ctx context.Context, conv []llm.Message) (llm.FragmentStream, error) {
	if err := llm.ValidateConversation(conv); err != nil {
		return nil, err
	}

	p := s.router.Route()
	start := time.Now()
	stream, err := p.ChatCompletionStream(ctx, llm.ChatRequest{Messages: conv, Temperature: s.cfg.Temperature})
	if err != nil {
		s.observer.RecordProviderCall("stream", p.ModelInfo().Provider, err, time.Since(start))
		return nil, err
	}
	return &observedStream{
		FragmentStream: stream,
		observer:       s.observer,
		provider:       p.ModelInfo().Provider,
		start:          start,
	}, nil
}

// Answer returns a retrieval-augmented answer when a vector store is
// configured, falling back to Complete when the enriched call fails or
// produces no text. Only the fallback's error can reach the caller.
func (s *Service) Answer(ctx context.Context, conv []llm.Message) (string, error) {
	if err := llm.ValidateConversation(conv); err != nil {
		return "", err
	}
	if !s.RetrievalEnabled() {
		s.observer.RecordAnswer(StateNoRetrieval)
		return s.Complete(ctx, conv)
	}

	answer, err := s.enriched(ctx, conv)
	if err == nil {
		s.observer.RecordAnswer(StateEnriched)
		return answer, nil
	}

	var d *degradation
	reason := ReasonProviderError
	if errors.As(err, &d) {
		reason = d.reason
	}
	s.log.Warn().Err(err).Str("reason", reason).Str("vector_store_id", s.cfg.VectorStoreID).
		Msg("retrieval unavailable, answering without knowledge base")
	s.observer.RecordFallback(reason)
	s.observer.RecordAnswer(StateFallback)
	return s.Complete(ctx, conv)
}

func (s *Service) enriched(ctx context.Context, conv []llm.Message) (string, error) {
	msgs := make([]llm.Message, 0, len(conv)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: RetrievalInstruction})
	msgs = append(msgs, conv...)

	p := s.router.Route()
	start := time.Now()
	resp, err := p.Respond(ctx, llm.RetrievalRequest{
		Messages:       msgs,
		VectorStoreIDs: []string{s.cfg.VectorStoreID},
		Temperature:    s.cfg.Temperature,
	})
	s.observer.RecordProviderCall("respond", p.ModelInfo().Provider, err, time.Since(start))
	if err != nil {
		return "", &degradation{reason: ReasonProviderError, cause: err}
	}
	if strings.TrimSpace(resp.OutputText) == "" {
		return "", &degradation{reason: ReasonEmptyOutput}
	}

	if traces := FormatTraces(resp.ToolCalls); traces != "" {
		return resp.OutputText + "\n\n" + traces, nil
	}
	return resp.OutputText, nil
}

// FormatTraces renders file_search calls as "<kind>: <result>" lines. Other
// tool kinds are dropped; an empty result prints "no result".
func FormatTraces(calls []llm.ToolCall) string {
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		if c.Kind != llm.ToolKindFileSearch {
			continue
		}
		result := c.Result
		if strings.TrimSpace(result) == "" {
			result = noResult
		}
		lines = append(lines, c.Kind+": "+result)
	}
	return strings.Join(lines, "\n")
}

// Collect drains and closes stream, returning the concatenated text.
func Collect(stream llm.FragmentStream) (string, error) {
	defer stream.Close() //nolint:errcheck

	var b strings.Builder
	for stream.Next() {
		b.WriteString(stream.Fragment())
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// degradation is the errRetrievalDegraded carrier for one enriched attempt.
type degradation struct {
	reason string
	cause  error
}

func (d *degradation) Error() string {
	if d.cause == nil {
		return fmt.Sprintf("%s: %s", errRetrievalDegraded, d.reason)
	}
	return fmt.Sprintf("%s: %s: %v", errRetrievalDegraded, d.reason, d.cause)
}

func (d *degradation) Unwrap() []error {
	if d.cause == nil {
		return []error{errRetrievalDegraded}
	}
	return []error{errRetrievalDegraded, d.cause}
}

// observedStream counts fragments and records the call once it ends.
type observedStream struct {
	llm.FragmentStream
	observer Observer
	provider string
	start    time.Time
	done     bool
}

func (o *observedStream) Next() bool {
	if o.FragmentStream.Next() {
		o.observer.RecordFragment()
		return true
	}
	o.finish()
	return false
}

func (o *observedStream) Close() error {
	o.finish()
	return o.FragmentStream.Close()
}

func (o *observedStream) finish() {
	if o.done {
		return
	}
	o.done = true
	o.observer.RecordProviderCall("stream", o.provider, o.FragmentStream.Err(), time.Since(o.start))
}

type nopObserver struct{}

func (nopObserver) RecordProviderCall(string, string, error, time.Duration) {}
func (nopObserver) RecordAnswer(string)                                     {}
func (nopObserver) RecordFallback(string)                                   {}
func (nopObserver) RecordFragment()                                         {}
