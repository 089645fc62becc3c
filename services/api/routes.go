package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/hlog"

	"inventoryd/pkg/admission"
	"inventoryd/pkg/telemetry"
	"inventoryd/services/inventory"
)

// Routes builds the chi router for check-in ingestion, the HTML views and
// the operational endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	if a.config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(a.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", admission.ClientAddr(r)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.deps.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.config.RequestTimeout))

		r.With(admission.Middleware(a.deps.Limiter, a.config.MaxBodyBytes, a.rejectAdmission)).
			Post("/checkin", a.handleCheckin)

		r.Group(func(r chi.Router) {
			if len(a.config.CORSAllowedOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins: a.config.CORSAllowedOrigins,
					AllowedMethods: []string{"GET", "OPTIONS"},
					AllowedHeaders: []string{"Accept"},
					MaxAge:         int((10 * time.Minute).Seconds()),
				}))
			}
			r.Use(httprate.Limit(
				a.config.UIRequestsPerMinute,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					a.deps.Metrics.observeRejection("ui_rate")
					a.writeError(w, r, &admission.RateLimitedError{RetryAfter: time.Minute})
				}),
			))
			r.Get("/", a.handleIndex)
			r.Get("/device/{serial}", a.handleDevice)
		})
	})

	return telemetry.Middleware(ServiceName)(r)
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Pinger.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	// A disconnected bus is logged but does not fail readiness.
	if n := a.deps.Notifier; n != nil && !n.Connected() {
		hlog.FromRequest(r).Warn().Msg("notification bus disconnected")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (a *API) rejectAdmission(w http.ResponseWriter, r *http.Request, err error) {
	switch classify(err) {
	case inventory.KindRateLimited:
		a.deps.Metrics.observeRejection("rate")
		a.deps.Metrics.observeCheckin("rate_limited")
	default:
		a.deps.Metrics.observeRejection("size")
		a.deps.Metrics.observeCheckin("too_large")
	}
	a.writeError(w, r, err)
}
