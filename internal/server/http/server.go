// Package httpserver exposes the caller-ID REST API over chi.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/and161185/authentic-caller/internal/metrics"
	"github.com/and161185/authentic-caller/internal/service"
)

// DefaultMaxUploadBytes caps an uploaded address book.
const DefaultMaxUploadBytes int64 = 5 << 20

const maxJSONBody = 1 << 20

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	// Ready reports backing store health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
	// Timeout bounds each request; zero disables it.
	Timeout time.Duration
}

// Server wires services into HTTP handlers.
type Server struct {
	auth     service.AuthService
	contacts service.ContactService
	validate *validator.Validate
	log      *zap.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// New constructs an HTTP server with injected services.
func New(auth service.AuthService, contacts service.ContactService, log *zap.Logger, m *metrics.Metrics, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:     auth,
		contacts: contacts,
		validate: newValidator(),
		log:      log,
		metrics:  m,
		opts:     opts,
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(s.AccessLog)
	r.Use(s.Recover)

	r.Get("/", s.handleBanner)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.Timeout > 0 {
			r.Use(timeout(s.opts.Timeout))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/send-otp", s.handleSendOTP)
			r.Post("/verify-otp", s.handleVerifyOTP)
			r.Put("/reset-password", s.handleResetPassword)
		})

		r.Route("/global", func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Post("/upload-contacts", s.handleUploadContacts)
			r.Post("/report-spam", s.handleReportSpam)
			r.Get("/search/{searchStr}", s.handleSearch)
			r.Get("/user/{id}", s.handleUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// timeout cancels the request context after d.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, envelope{Message: "Welcome to Authentic Caller API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeFail(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeOK(w, envelope{Message: "ok"})
}
