// Route registration and go-chi router setup.
// Public routes (/health, /metrics, /auth/*, /api/health, /api/ai/ask, /mcp) vs
// JWT-protected knowledge admin routes (/api/knowledge/*). Browser clients
// point a single API base at /api.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/aiweb/internal/api/middleware"
	domainauth "github.com/matiasleandrokruk/aiweb/internal/domain/auth"
	"github.com/matiasleandrokruk/aiweb/internal/infra/metrics"
)

// Deps carries the services the router exposes. MCP and Metrics may be nil,
// in which case /mcp and /metrics are not mounted.
type Deps struct {
	Auth      domainauth.AuthService
	Chat      handlers.ChatService
	Knowledge handlers.KnowledgeService
	MCP       http.Handler
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	// CORSOrigins lists browser origins allowed cross-origin; empty means "*".
	CORSOrigins []string
}

// corsOptions allows any listed origin to call the API from a browser.
// Tokens travel in the Authorization header, never in cookies.
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	var recorder apmiddleware.HTTPRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(corsOptions(deps.CORSOrigins)))
	r.Use(apmiddleware.RequestLogger(deps.Log.With().Str("component", "http").Logger(), recorder))
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check, used by load balancers and orchestrators
	r.Get("/health", health)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Log.With().Str("component", "chat").Logger())
	r.Get("/api/health", health)           // GET /api/health
	r.Post("/api/ai/ask", chatHandler.Ask) // POST /api/ai/ask

	if deps.MCP != nil {
		r.Handle("/mcp", deps.MCP)
	}

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	knowledgeHandler := handlers.NewKnowledgeHandler(deps.Knowledge)
	r.Route("/api/knowledge", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)
		r.Use(apmiddleware.AuditMiddleware(apmiddleware.NewLogAuditSink(deps.Log)))

		r.Route("/stores", func(r chi.Router) {
			r.Post("/", knowledgeHandler.CreateStore)          // POST /api/knowledge/stores
			r.Get("/", knowledgeHandler.ListStores)            // GET /api/knowledge/stores
			r.Post("/{id}/files", knowledgeHandler.UploadFile) // POST /api/knowledge/stores/{id}/files
			r.Get("/{id}/files", knowledgeHandler.ListFiles)   // GET /api/knowledge/stores/{id}/files
		})
	})

	return r
}
