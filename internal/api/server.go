package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/qubitplay/quantum-crash-go/internal/session"
	"github.com/qubitplay/quantum-crash-go/internal/store"
	"github.com/qubitplay/quantum-crash-go/internal/ws"
)

// Server handles HTTP requests
type Server struct {
	sessions *session.Manager
	db       store.DB
	hub      *ws.Hub
	log      *slog.Logger
	validate *validator.Validate
}

// NewServer creates a new API server
func NewServer(sessions *session.Manager, db store.DB, hub *ws.Hub, log *slog.Logger) *Server {
	return &Server{
		sessions: sessions,
		db:       db,
		hub:      hub,
		log:      log,
		validate: validator.New(),
	}
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewRequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Heartbeat("/health"))

	// CORS for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/round/start", s.handleStart)
			r.Post("/round/cashout", s.handleCashOut)
			r.Get("/history", s.handleHistory)
		})
	})

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleConnection)
	}

	return r
}
