package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// DefaultProbeTimeout bounds one run of the readiness checks.
const DefaultProbeTimeout = 5 * time.Second

// Probe statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDegraded = "degraded"
	StatusDraining = "draining"
)

// Report is the body of a readiness response.
type Report struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime,omitempty"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Critical  bool      `json:"critical"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler serves the liveness and readiness probes of the catalog.
type Handler struct {
	logger   observability.Logger
	timeout  time.Duration
	started  time.Time
	draining atomic.Bool

	mu     sync.RWMutex
	checks []HealthCheck
}

// Option configures a Handler.
type Option func(*Handler)

// WithProbeTimeout bounds a readiness run; non-positive values keep
// DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHandler creates a probe handler without checks.
func NewHandler(logger observability.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{
		logger:  logger,
		timeout: DefaultProbeTimeout,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddCheck registers a readiness check.
func (h *Handler) AddCheck(check HealthCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// SetDraining fails readiness while the server shuts down.
func (h *Handler) SetDraining(draining bool) {
	h.draining.Store(draining)
}

// IsDraining reports whether the handler is draining.
func (h *Handler) IsDraining() bool {
	return h.draining.Load()
}

// RegisterRoutes registers /healthz and /livez for liveness and /readyz for
// readiness.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.live)
	r.GET("/livez", h.live)
	r.GET("/readyz", h.ready)
}

func (h *Handler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": StatusOK, "timestamp": time.Now().UTC()})
}

func (h *Handler) ready(c *gin.Context) {
	if h.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, &Report{Status: StatusDraining, Timestamp: time.Now().UTC()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := h.Run(ctx)
	code := http.StatusOK
	if report.Status == StatusError {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// Run executes every check concurrently. A failing critical check turns
// the report into "error"; an optional one only degrades it.
func (h *Handler) Run(ctx context.Context) *Report {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]*CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = h.run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}
	for i, res := range results {
		report.Checks[checks[i].Name()] = res
		if res.Status == StatusOK {
			continue
		}
		if res.Critical {
			report.Status = StatusError
		} else if report.Status == StatusOK {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (h *Handler) run(ctx context.Context, check HealthCheck) *CheckResult {
	start := time.Now()
	err := check.Check(ctx)
	elapsed := time.Since(start)

	res := &CheckResult{
		Status:    StatusOK,
		Duration:  elapsed.String(),
		Critical:  isCritical(check),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		res.Status, res.Error = StatusError, err.Error()
		h.logger.WithContext(ctx).Warn("health check failed",
			observability.String("check", check.Name()),
			observability.Bool("critical", res.Critical),
			observability.Duration("duration", elapsed),
			observability.Error(err),
		)
	}
	return res
}
