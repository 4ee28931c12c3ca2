package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walletnotify/internal/handler"
	"walletnotify/internal/httputil"
	authmw "walletnotify/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	NotificationHandler *handler.NotificationHandler
	WebhookHandler      *handler.WebhookHandler
	Auth                authmw.AuthConfig
	// Verifier checks webhook signatures. Nil makes /api/webhook answer 500.
	Verifier       authmw.BodyVerifier
	RateLimiter    *authmw.RateLimiter
	AllowedOrigins []string
	// TrustProxy takes the client IP from forwarding headers.
	TrustProxy bool
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(corsOptions(cfg.AllowedOrigins)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}

			// Public: browsers fetch the key before subscribing
			r.Get("/vapid-public-key", cfg.NotificationHandler.VAPIDPublicKey)

			r.Group(func(r chi.Router) {
				r.Use(authmw.AuthMiddleware(cfg.Auth))

				r.Post("/register-token", cfg.NotificationHandler.RegisterToken)
				r.Post("/register-subscription", cfg.NotificationHandler.RegisterSubscription)
			})
		})

		// Webhooks authenticate by signature, not bearer token
		r.With(authmw.SignatureMiddleware(cfg.Verifier)).Post("/webhook", cfg.WebhookHandler.Receive)
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}
}

// securityHeaders sets the baseline response headers for an API server.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
