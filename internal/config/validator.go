package config

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ValidationError is one problem found in a configuration, located by
// its YAML path.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors is every problem ValidateConfig found, in field order.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	switch len(msgs) {
	case 0:
		return "no validation errors"
	case 1:
		return msgs[0]
	}
	return fmt.Sprintf("%d validation errors: %s", len(msgs), strings.Join(msgs, "; "))
}

// validator collects problems section by section.
type validator struct {
	errs ValidationErrors
}

func (v *validator) add(path, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfig checks a loaded configuration. It returns nil or a
// ValidationErrors listing every problem.
func ValidateConfig(config *CatalogConfig) error {
	v := &validator{}
	if config == nil {
		v.add("", "configuration is nil")
		return v.errs
	}

	v.validateRoot(config)
	v.validateServer(&config.Spec.Server)
	v.validateDatabase(&config.Spec.Database)
	v.validateCache(&config.Spec.Cache)
	v.validateCompact(&config.Spec.Compact)
	v.validateRateLimit(&config.Spec.RateLimit)
	v.validateCircuitBreaker(&config.Spec.CircuitBreaker)
	v.validateObservability(&config.Spec.Observability)

	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

func (v *validator) validateRoot(config *CatalogConfig) {
	if config.APIVersion == "" {
		v.add("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(config.APIVersion, APIVersionPrefix) {
		v.add("apiVersion", "apiVersion must start with '%s'", APIVersionPrefix)
	}

	if config.Kind == "" {
		v.add("kind", "kind is required")
	} else if config.Kind != KindCatalog {
		v.add("kind", "kind must be '%s'", KindCatalog)
	}

	if config.Metadata.Name == "" {
		v.add("metadata.name", "name is required")
	}
}

func (v *validator) validateServer(s *ServerConfig) {
	const path = "spec.server"

	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		v.add(path+".address", "invalid listen address %q", s.Address)
	}
	if !strings.HasPrefix(s.BasePath, "/") {
		v.add(path+".basePath", "basePath must start with '/'")
	}
	if strings.TrimSpace(s.TenantHeader) == "" {
		v.add(path+".tenantHeader", "tenantHeader is required")
	}
	timeouts := []struct {
		name  string
		value Duration
	}{
		{"readTimeout", s.ReadTimeout},
		{"writeTimeout", s.WriteTimeout},
		{"idleTimeout", s.IdleTimeout},
		{"requestTimeout", s.RequestTimeout},
		{"shutdownTimeout", s.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			v.add(path+"."+t.name, "must not be negative")
		}
	}
	for i, proxy := range s.TrustedProxies {
		if !validProxy(proxy) {
			v.add(fmt.Sprintf("%s.trustedProxies[%d]", path, i), "invalid CIDR or IP %q", proxy)
		}
	}
}

func (v *validator) validateDatabase(db *DatabaseConfig) {
	const path = "spec.database"

	switch db.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		v.add(path+".driver", "driver must be '%s' or '%s'", DriverSQLite, DriverPostgres)
	}
	if db.DSN == "" {
		v.add(path+".dsn", "dsn is required")
	}
	if db.MaxOpenConns < 0 {
		v.add(path+".maxOpenConns", "must not be negative")
	}
	if db.MaxIdleConns < 0 {
		v.add(path+".maxIdleConns", "must not be negative")
	}
	if db.MaxOpenConns > 0 && db.MaxIdleConns > db.MaxOpenConns {
		v.add(path+".maxIdleConns", "must not exceed maxOpenConns")
	}
}

func (v *validator) validateCache(c *CacheConfig) {
	const path = "spec.cache"

	if !c.Enabled {
		return
	}

	switch c.Type {
	case CacheTypeMemory:
		if c.MaxEntries < 0 {
			v.add(path+".maxEntries", "must not be negative")
		}
	case CacheTypeRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			v.add(path+".redis.url", "redis url is required for redis cache")
			break
		}
		if u, err := url.Parse(c.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			v.add(path+".redis.url", "redis url must use the redis:// or rediss:// scheme")
		}
	default:
		v.add(path+".type", "type must be '%s' or '%s'", CacheTypeMemory, CacheTypeRedis)
	}

	if c.TTL <= 0 {
		v.add(path+".ttl", "ttl must be positive")
	}
}

func (v *validator) validateCompact(c *CompactConfig) {
	if c.Enabled && strings.TrimSpace(c.QueryParam) == "" {
		v.add("spec.compact.queryParam", "queryParam is required when compact is enabled")
	}
}

func (v *validator) validateRateLimit(rl *RateLimitConfig) {
	const path = "spec.rateLimit"

	if !rl.Enabled {
		return
	}
	if rl.RequestsPerSecond <= 0 {
		v.add(path+".requestsPerSecond", "requestsPerSecond must be positive")
	}
	if rl.Burst <= 0 {
		v.add(path+".burst", "burst must be positive")
	}
}

func (v *validator) validateCircuitBreaker(cb *CircuitBreakerConfig) {
	const path = "spec.circuitBreaker"

	if !cb.Enabled {
		return
	}
	if cb.Threshold <= 0 {
		v.add(path+".threshold", "threshold must be positive")
	}
	if cb.Timeout <= 0 {
		v.add(path+".timeout", "timeout must be positive")
	}
}

func (v *validator) validateObservability(o *ObservabilityConfig) {
	const path = "spec.observability"

	switch strings.ToLower(o.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.add(path+".logging.level", "level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(o.Logging.Format) {
	case "json", "console":
	default:
		v.add(path+".logging.format", "format must be json or console")
	}

	if o.Metrics.Enabled && !strings.HasPrefix(o.Metrics.Path, "/") {
		v.add(path+".metrics.path", "path must start with '/'")
	}

	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.add(path+".tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

func validProxy(entry string) bool {
	if _, err := netip.ParsePrefix(entry); err == nil {
		return true
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}
