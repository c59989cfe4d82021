package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DependencyType classifies a checked dependency.
type DependencyType string

// Dependency types.
const (
	DependencyTypeDatabase DependencyType = "database"
	DependencyTypeCache    DependencyType = "cache"
	DependencyTypeCustom   DependencyType = "custom"
)

// HealthCheck defines the interface for health checks.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is anything that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyCheck checks one dependency and records the outcome.
type DependencyCheck struct {
	name     string
	depType  DependencyType
	checkFn  func(ctx context.Context) error
	critical bool
	metrics  *HealthMetrics
}

// DependencyCheckOption configures a DependencyCheck.
type DependencyCheckOption func(*DependencyCheck)

// WithCritical sets whether a failure makes the service unready.
// Checks are critical by default.
func WithCritical(critical bool) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.critical = critical
	}
}

// WithCheckMetrics overrides the metrics the check records to.
func WithCheckMetrics(m *HealthMetrics) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.metrics = m
	}
}

// NewDependencyCheck creates a dependency check.
func NewDependencyCheck(
	name string,
	depType DependencyType,
	checkFn func(ctx context.Context) error,
	opts ...DependencyCheckOption,
) *DependencyCheck {
	d := &DependencyCheck{
		name:     name,
		depType:  depType,
		checkFn:  checkFn,
		critical: true,
		metrics:  GetHealthMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the name of the dependency check.
func (d *DependencyCheck) Name() string {
	return d.name
}

// Type returns the dependency type.
func (d *DependencyCheck) Type() DependencyType {
	return d.depType
}

// IsCritical returns true if the dependency is critical.
func (d *DependencyCheck) IsCritical() bool {
	return d.critical
}

// Check runs the check and records its result.
func (d *DependencyCheck) Check(ctx context.Context) error {
	start := time.Now()
	err := d.checkFn(ctx)
	if d.metrics != nil {
		d.metrics.RecordCheck(d.name, err == nil, time.Since(start))
	}
	return err
}

// DatabaseCheck pings the catalog database.
func DatabaseCheck(name string, db Pinger, opts ...DependencyCheckOption) *DependencyCheck {
	return NewDependencyCheck(name, DependencyTypeDatabase, pingFunc("database", db), opts...)
}

// CacheCheck pings the response cache backend.
func CacheCheck(name string, c Pinger, opts ...DependencyCheckOption) *DependencyCheck {
	return NewDependencyCheck(name, DependencyTypeCache, pingFunc("cache", c), opts...)
}

func pingFunc(what string, p Pinger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New(what + " is not configured")
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", what, err)
		}
		return nil
	}
}

type criticality interface {
	IsCritical() bool
}

func isCritical(check HealthCheck) bool {
	if c, ok := check.(criticality); ok {
		return c.IsCritical()
	}
	return true
}
