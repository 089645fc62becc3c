package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"inventoryd/pkg/admission"
	"inventoryd/pkg/render"
	"inventoryd/services/inventory"
)

const (
	defaultMaxBodyBytes        = 64 << 10
	defaultUIRequestsPerMinute = 120
	defaultRequestTimeout      = 30 * time.Second

	// ServiceName labels spans and the server's log lines.
	ServiceName = "inventoryd"
)

// Ingestor accepts raw check-in bodies.
type Ingestor interface {
	Ingest(ctx context.Context, body []byte) (inventory.Event, error)
}

// Reader serves the HTML views.
type Reader interface {
	Machines(ctx context.Context) ([]inventory.State, error)
	Device(ctx context.Context, serial string) (inventory.Device, error)
}

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Notifier reports whether the check-in notification bus is connected.
type Notifier interface {
	Connected() bool
}

// Deps holds external dependencies required by the API layer. Notifier is
// optional and only set when notifications are configured.
type Deps struct {
	Ingestor Ingestor
	Reader   Reader
	Pinger   Pinger
	Notifier Notifier
	Renderer *render.Engine
	Limiter  *admission.Limiter
	Metrics  *Metrics
	Logger   zerolog.Logger
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	MaxBodyBytes        int64
	UIRequestsPerMinute int
	TrustProxyHeaders   bool
	CORSAllowedOrigins  []string
	RequestTimeout      time.Duration
}

// API wires dependencies, template renderer, and configuration for HTTP handlers.
type API struct {
	deps   Deps
	config Config
	log    zerolog.Logger
}

// New initialises the API layer with sane defaults applied to the provided configuration.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if deps.Reader == nil {
		return nil, errors.New("reader is required")
	}
	if deps.Pinger == nil {
		return nil, errors.New("pinger is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(deps.Limiter)
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.UIRequestsPerMinute <= 0 {
		cfg.UIRequestsPerMinute = defaultUIRequestsPerMinute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &API{
		deps:   deps,
		config: cfg,
		log:    deps.Logger,
	}, nil
}
