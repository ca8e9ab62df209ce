package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/ports/repository"
	"ridehail-backoffice/internal/infra/logging"
	"ridehail-backoffice/internal/infra/redis"
	"ridehail-backoffice/internal/infra/security"
	"ridehail-backoffice/internal/usecase"
)

// RedirectURLs are the pages the callback path sends the user-agent to.
type RedirectURLs struct {
	Success string
	Failure string
}

// Server wires the payment endpoints: checkout initiation, client
// confirmation, and the gateway callback.
type Server struct {
	payUC     usecase.PaymentUseCase
	webhooks  repository.WebhookLogRepository
	codec     *security.Codec
	auth      *AuthManager
	limiter   *redis.RateLimiter
	confirmRL int
	redirects RedirectURLs
	validate  *validator.Validate
	log       *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	webhooks repository.WebhookLogRepository,
	codec *security.Codec,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	confirmPerMinute int,
	redirects RedirectURLs,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		payUC:     payUC,
		webhooks:  webhooks,
		codec:     codec,
		auth:      auth,
		limiter:   limiter,
		confirmRL: confirmPerMinute,
		redirects: redirects,
		validate:  validator.New(),
		log:       logger,
	}
}

// Routes builds the chi router for the public API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceContext)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		// Gateway-facing callback carries its own encrypted token; no bearer auth.
		r.Get("/mmg/callback", s.handleCallback)
		r.Post("/mmg/callback", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/checkout", s.handleCheckout)
			r.With(s.confirmRateLimit).Post("/confirm", s.handleConfirm)
			r.Get("/subscription", s.handleSubscription)
		})
	})

	return r
}

// confirmRateLimit bounds per-user confirmation attempts; each attempt can
// cost a gateway lookup.
func (s *Server) confirmRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, _ := IdentityFrom(r.Context())
		ok, err := s.limiter.Allow(r.Context(), redis.ConfirmKey(id.UserID), s.confirmRL, time.Minute)
		if err != nil {
			// Limiter outage must not take the payment path down.
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			s.writeDomainError(r.Context(), w, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// traceContext mirrors chi's request id into the logging context so every
// log line on the request path carries it.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}
