package api

import (
	"log"
	"net/http"
	"time"

	"chatvault-backend/internal/config"
	"chatvault-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ConversationHandler *handlers.ConversationHandlers
	SearchHandler       *handlers.SearchHandlers
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		if deps.ConversationHandler != nil {
			r.Post("/exchanges", deps.ConversationHandler.HandleIngestExchange)
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/{conversationID}", deps.ConversationHandler.HandleGetConversation)
				r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)
			})
		} else {
			log.Println("WARN: ConversationHandler dependency is nil, skipping /v1/exchanges routes.")
		}

		if deps.SearchHandler != nil {
			r.Post("/search", deps.SearchHandler.HandleSearch)
		} else {
			log.Println("WARN: SearchHandler dependency is nil, skipping /v1/search route.")
		}
	})

	return r
}
