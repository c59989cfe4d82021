package config

import (
	"slices"
	"time"
)

// Envelope identifiers of a catalog configuration document.
const (
	APIVersionPrefix  = "catalog.ordcatalog.io/"
	DefaultAPIVersion = APIVersionPrefix + "v1"
	KindCatalog       = "Catalog"
)

// Defaults.
const (
	DefaultAddress         = ":8080"
	DefaultBasePath        = "/open-resource-discovery-service/v0"
	DefaultTenantHeader    = "Tenant"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDatabaseDriver  = "sqlite"
	DefaultDatabaseDSN     = "file:ordcatalog.db?cache=shared"
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultSlowQuery       = 200 * time.Millisecond

	DefaultCacheType       = "memory"
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheMaxEntries = 1000
	DefaultCacheKeyPrefix  = "ordcatalog:"

	DefaultCompactQueryParam = "compact"

	DefaultRateLimitRPS   = 100
	DefaultRateLimitBurst = 200

	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerTimeout   = 30 * time.Second

	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultMetricsPath  = "/metrics"
	DefaultServiceName  = "ordcatalog"
	DefaultSamplingRate = 1.0
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// CatalogConfig is the root configuration document.
type CatalogConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       CatalogSpec `yaml:"spec" json:"spec"`
}

// Metadata contains configuration metadata.
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// CatalogSpec holds the service settings.
type CatalogSpec struct {
	Server         ServerConfig         `yaml:"server" json:"server"`
	Database       DatabaseConfig       `yaml:"database" json:"database"`
	Cache          CacheConfig          `yaml:"cache" json:"cache"`
	Compact        CompactConfig        `yaml:"compact" json:"compact"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit" json:"rateLimit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
	Observability  ObservabilityConfig  `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener and the catalog routes.
type ServerConfig struct {
	Address      string   `yaml:"address" json:"address"`
	BasePath     string   `yaml:"basePath" json:"basePath"`
	TenantHeader string   `yaml:"tenantHeader" json:"tenantHeader"`
	ReadTimeout  Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout  Duration `yaml:"idleTimeout" json:"idleTimeout"`
	// RequestTimeout bounds a single catalog request; zero disables it.
	RequestTimeout  Duration `yaml:"requestTimeout" json:"requestTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is honored.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string   `yaml:"driver" json:"driver"`
	DSN             string   `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int      `yaml:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns    int      `yaml:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
	AutoMigrate     bool     `yaml:"autoMigrate" json:"autoMigrate"`
	// SeedFile is an optional JSON document loaded into the store at startup.
	SeedFile string `yaml:"seedFile,omitempty" json:"seedFile,omitempty"`
	// SlowQueryThreshold marks queries logged at warn level.
	SlowQueryThreshold Duration `yaml:"slowQueryThreshold" json:"slowQueryThreshold"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Type       string            `yaml:"type" json:"type"`
	TTL        Duration          `yaml:"ttl" json:"ttl"`
	MaxEntries int               `yaml:"maxEntries" json:"maxEntries"`
	Redis      *RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisCacheConfig configures the redis backed cache.
type RedisCacheConfig struct {
	// URL is a redis:// or rediss:// URL.
	URL       string   `yaml:"url" json:"url"`
	KeyPrefix string   `yaml:"keyPrefix" json:"keyPrefix"`
	PoolSize  int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// CompactConfig configures the compact response interceptor.
type CompactConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	QueryParam string `yaml:"queryParam" json:"queryParam"`
}

// RateLimitConfig configures request rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int  `yaml:"burst" json:"burst"`
	// PerClient keeps one bucket per client address.
	PerClient bool `yaml:"perClient" json:"perClient"`
}

// CircuitBreakerConfig configures the circuit breaker in front of the
// catalog handlers.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// ObservabilityConfig groups logging, metrics and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
}

// DefaultConfig returns a configuration that runs the service against a
// local sqlite file with the in-memory cache.
func DefaultConfig() *CatalogConfig {
	return &CatalogConfig{
		APIVersion: DefaultAPIVersion,
		Kind:       KindCatalog,
		Metadata: Metadata{
			Name: "ord-catalog",
		},
		Spec: CatalogSpec{
			Server: ServerConfig{
				Address:         DefaultAddress,
				BasePath:        DefaultBasePath,
				TenantHeader:    DefaultTenantHeader,
				ReadTimeout:     Duration(DefaultReadTimeout),
				WriteTimeout:    Duration(DefaultWriteTimeout),
				IdleTimeout:     Duration(DefaultIdleTimeout),
				RequestTimeout:  Duration(DefaultRequestTimeout),
				ShutdownTimeout: Duration(DefaultShutdownTimeout),
			},
			Database: DatabaseConfig{
				Driver:             DefaultDatabaseDriver,
				DSN:                DefaultDatabaseDSN,
				MaxOpenConns:       DefaultMaxOpenConns,
				MaxIdleConns:       DefaultMaxIdleConns,
				ConnMaxLifetime:    Duration(DefaultConnMaxLifetime),
				AutoMigrate:        true,
				SlowQueryThreshold: Duration(DefaultSlowQuery),
			},
			Cache: CacheConfig{
				Enabled:    true,
				Type:       DefaultCacheType,
				TTL:        Duration(DefaultCacheTTL),
				MaxEntries: DefaultCacheMaxEntries,
			},
			Compact: CompactConfig{
				Enabled:    true,
				QueryParam: DefaultCompactQueryParam,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: DefaultRateLimitRPS,
				Burst:             DefaultRateLimitBurst,
				PerClient:         true,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: DefaultCircuitBreakerThreshold,
				Timeout:   Duration(DefaultCircuitBreakerTimeout),
			},
			Observability: ObservabilityConfig{
				Logging: LoggingConfig{
					Level:  DefaultLogLevel,
					Format: DefaultLogFormat,
				},
				Metrics: MetricsConfig{
					Enabled: true,
					Path:    DefaultMetricsPath,
				},
				Tracing: TracingConfig{
					SamplingRate: DefaultSamplingRate,
					ServiceName:  DefaultServiceName,
				},
			},
		},
	}
}

// ApplyDefaults fills zero values left by an explicit empty setting.
// Booleans are not touched.
func (c *CatalogConfig) ApplyDefaults() {
	s := &c.Spec

	setString(&s.Server.Address, DefaultAddress)
	setString(&s.Server.BasePath, DefaultBasePath)
	setString(&s.Server.TenantHeader, DefaultTenantHeader)
	setDuration(&s.Server.ReadTimeout, DefaultReadTimeout)
	setDuration(&s.Server.WriteTimeout, DefaultWriteTimeout)
	setDuration(&s.Server.IdleTimeout, DefaultIdleTimeout)
	setDuration(&s.Server.ShutdownTimeout, DefaultShutdownTimeout)

	setString(&s.Database.Driver, DefaultDatabaseDriver)
	setInt(&s.Database.MaxOpenConns, DefaultMaxOpenConns)
	setInt(&s.Database.MaxIdleConns, DefaultMaxIdleConns)
	setDuration(&s.Database.ConnMaxLifetime, DefaultConnMaxLifetime)
	setDuration(&s.Database.SlowQueryThreshold, DefaultSlowQuery)

	setString(&s.Cache.Type, DefaultCacheType)
	setDuration(&s.Cache.TTL, DefaultCacheTTL)
	setInt(&s.Cache.MaxEntries, DefaultCacheMaxEntries)
	if s.Cache.Redis != nil {
		setString(&s.Cache.Redis.KeyPrefix, DefaultCacheKeyPrefix)
	}

	setString(&s.Compact.QueryParam, DefaultCompactQueryParam)

	setInt(&s.RateLimit.RequestsPerSecond, DefaultRateLimitRPS)
	setInt(&s.RateLimit.Burst, DefaultRateLimitBurst)

	setInt(&s.CircuitBreaker.Threshold, DefaultCircuitBreakerThreshold)
	setDuration(&s.CircuitBreaker.Timeout, DefaultCircuitBreakerTimeout)

	setString(&s.Observability.Logging.Level, DefaultLogLevel)
	setString(&s.Observability.Logging.Format, DefaultLogFormat)
	setString(&s.Observability.Metrics.Path, DefaultMetricsPath)
	setString(&s.Observability.Tracing.ServiceName, DefaultServiceName)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *Duration, def time.Duration) {
	if *dst == 0 {
		*dst = Duration(def)
	}
}

// ChangedSections returns the names of the configuration sections that differ
// between two configurations, in declaration order.
func ChangedSections(old, updated *CatalogConfig) []string {
	if old == nil || updated == nil {
		return nil
	}

	var changed []string
	a, b := &old.Spec, &updated.Spec

	if !serverEqual(a.Server, b.Server) {
		changed = append(changed, "server")
	}
	if a.Database != b.Database {
		changed = append(changed, "database")
	}
	if !cacheEqual(a.Cache, b.Cache) {
		changed = append(changed, "cache")
	}
	if a.Compact != b.Compact {
		changed = append(changed, "compact")
	}
	if a.RateLimit != b.RateLimit {
		changed = append(changed, "rateLimit")
	}
	if a.CircuitBreaker != b.CircuitBreaker {
		changed = append(changed, "circuitBreaker")
	}
	if a.Observability != b.Observability {
		changed = append(changed, "observability")
	}
	return changed
}

func serverEqual(a, b ServerConfig) bool {
	return a.Address == b.Address &&
		a.BasePath == b.BasePath &&
		a.TenantHeader == b.TenantHeader &&
		a.ReadTimeout == b.ReadTimeout &&
		a.WriteTimeout == b.WriteTimeout &&
		a.IdleTimeout == b.IdleTimeout &&
		a.RequestTimeout == b.RequestTimeout &&
		a.ShutdownTimeout == b.ShutdownTimeout &&
		slices.Equal(a.TrustedProxies, b.TrustedProxies)
}

func cacheEqual(a, b CacheConfig) bool {
	if a.Enabled != b.Enabled || a.Type != b.Type || a.TTL != b.TTL || a.MaxEntries != b.MaxEntries {
		return false
	}
	switch {
	case a.Redis == nil && b.Redis == nil:
		return true
	case a.Redis == nil || b.Redis == nil:
		return false
	default:
		return *a.Redis == *b.Redis
	}
}
