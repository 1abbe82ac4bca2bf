package router

import (
	"log/slog"
	"net/http"

	"pantrypal-api/internal/handler"
	"pantrypal-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Logger         *slog.Logger
	AllowedOrigins []string

	Handler        *handler.Handler
	AuthHandler    *handler.AuthHandler
	PantryHandler  *handler.PantryHandler
	BarcodeHandler *handler.BarcodeHandler
	UploadHandler  *handler.UploadHandler
	AdminHandler   *handler.AdminHandler

	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", cfg.AuthHandler.Register)
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/password/forgot", cfg.AuthHandler.ForgotPassword)
				r.Post("/password/reset", cfg.AuthHandler.ResetPassword)
			})
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
				r.Put("/auth/password", cfg.AuthHandler.ChangePassword)
			}

			if cfg.PantryHandler != nil {
				r.Route("/pantry", func(r chi.Router) {
					r.Get("/", cfg.PantryHandler.Get)
					r.Get("/stats", cfg.PantryHandler.Stats)
					r.Get("/events", cfg.PantryHandler.Events)
					r.Post("/refresh", cfg.PantryHandler.Refresh)
					r.Post("/items", cfg.PantryHandler.Create)
					r.Patch("/items/{id}", cfg.PantryHandler.Update)
					r.Delete("/items/{id}", cfg.PantryHandler.Delete)
				})
			}

			if cfg.BarcodeHandler != nil {
				r.Get("/barcode/{code}", cfg.BarcodeHandler.Lookup)
			}

			if cfg.UploadHandler != nil {
				r.Post("/uploads/image", cfg.UploadHandler.Image)
			}
		})

		// Admin endpoints
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminMiddleware != nil {
					r.Use(cfg.AdminMiddleware)
				}
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/login", cfg.AdminHandler.VerifyLogin)
			})
		}
	})

	return r
}
