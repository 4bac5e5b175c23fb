// HTTP audit middleware for the knowledge admin routes.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/api/ctxkeys"
)

// Outcome classifies an audited request by its response status.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// AuditEntry is one audited admin request.
type AuditEntry struct {
	ActorID    string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	Outcome    Outcome
}

// AuditSink is the minimal contract used by AuditMiddleware.
type AuditSink interface {
	Audit(ctx context.Context, entry AuditEntry)
}

// LogAuditSink writes audit entries as structured log lines.
type LogAuditSink struct {
	log zerolog.Logger
}

// NewLogAuditSink returns a sink that logs through l with component=audit.
func NewLogAuditSink(l zerolog.Logger) *LogAuditSink {
	return &LogAuditSink{log: l.With().Str("component", "audit").Logger()}
}

// Audit implements AuditSink.
func (s *LogAuditSink) Audit(ctx context.Context, e AuditEntry) {
	ev := s.log.Info()
	if e.Outcome != OutcomeSuccess {
		ev = s.log.Warn()
	}
	ev = ev.
		Str("actor_id", e.ActorID).
		Str("actor", e.Actor).
		Str("action", e.Action).
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status_code", e.StatusCode).
		Dur("duration", e.Duration).
		Str("outcome", string(e.Outcome))
	if e.EntityType != "" {
		ev = ev.Str("entity_type", e.EntityType)
	}
	if e.EntityID != "" {
		ev = ev.Str("entity_id", e.EntityID)
	}
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		ev = ev.Str("request_id", reqID)
	}
	ev.Msg("audit")
}

// AuditMiddleware records every authenticated request on the routes it wraps.
// Expected order in router: AuthMiddleware -> AuditMiddleware -> handlers.
func AuditMiddleware(sink AuditSink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sink == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := ctxkeys.String(r.Context(), ctxkeys.UserID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			username, _ := ctxkeys.String(r.Context(), ctxkeys.Username)

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			action, entityType, entityID := actionFromRequest(r.Method, r.URL.Path)
			sink.Audit(r.Context(), AuditEntry{
				ActorID:    userID,
				Actor:      username,
				Action:     action,
				EntityType: entityType,
				EntityID:   entityID,
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: recorder.statusCode,
				Duration:   time.Since(start),
				Outcome:    outcomeFromStatus(recorder.statusCode),
			})
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func outcomeFromStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeError
	}
}

// actionFromRequest maps /api/knowledge/stores[/{id}/files] to an action name,
// entity type and entity id. Unknown paths become "<method>_request".
func actionFromRequest(method, path string) (action, entityType, entityID string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	fallback := strings.ToLower(method) + "_request"
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "knowledge" || segments[2] != "stores" {
		return fallback, "", ""
	}

	switch len(segments) {
	case 3:
		return actionForCollection(method, "store"), "store", ""
	case 5:
		if segments[4] == "files" {
			return actionForCollection(method, "file"), "store", segments[3]
		}
	}
	return fallback, "", ""
}

func actionForCollection(method, entity string) string {
	switch method {
	case http.MethodPost:
		if entity == "file" {
			return "upload_file"
		}
		return "create_" + entity
	case http.MethodGet:
		return "list_" + entity + "s"
	default:
		return strings.ToLower(method) + "_" + entity
	}
}
