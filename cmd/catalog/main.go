// Package main is the entry point for the ORD catalog service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/ordcatalog/internal/cache"
	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
	"github.com/vyrodovalexey/ordcatalog/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	seedFile    string
	watch       bool
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	path, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		logger.Fatal("failed to locate configuration", observability.Error(err))
	}
	flags.configPath = path

	cfg := loadAndValidateConfig(flags, logger)
	app := initApplication(cfg, logger)

	runCatalog(app, flags, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("CATALOG_CONFIG_PATH", "configs/catalog.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("CATALOG_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	logFormat := flag.String("log-format", getEnvOrDefault("CATALOG_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration")
	seedFile := flag.String("seed", getEnvOrDefault("CATALOG_SEED_FILE", ""),
		"Seed document loaded at startup; overrides spec.database.seedFile")
	watch := flag.Bool("watch", getEnvBool("CATALOG_WATCH_CONFIG", true),
		"Reload the configuration file when it changes")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		seedFile:    *seedFile,
		watch:       *watch,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("ordcatalog version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the bootstrap logger from the flags. The
// configuration may replace it once it is loaded.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  orDefault(flags.logLevel, config.DefaultLogLevel),
		Format: orDefault(flags.logFormat, config.DefaultLogFormat),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration and applies
// the command line overrides.
func loadAndValidateConfig(flags cliFlags, logger observability.Logger) *config.CatalogConfig {
	logger.Info("starting ordcatalog",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}
	applyFlagOverrides(cfg, flags)

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("address", cfg.Spec.Server.Address),
		observability.String("base_path", cfg.Spec.Server.BasePath),
		observability.String("database", cfg.Spec.Database.Driver),
		observability.String("cache", cacheDescription(&cfg.Spec.Cache)),
	)

	return cfg
}

func applyFlagOverrides(cfg *config.CatalogConfig, flags cliFlags) {
	if flags.logLevel != "" {
		cfg.Spec.Observability.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Spec.Observability.Logging.Format = flags.logFormat
	}
	if flags.seedFile != "" {
		cfg.Spec.Database.SeedFile = flags.seedFile
	}
}

func cacheDescription(c *config.CacheConfig) string {
	if !c.Enabled {
		return "disabled"
	}
	return c.Type
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// application holds all application components.
type application struct {
	server  *server.Server
	store   *catalog.Store
	cache   cache.Cache
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.CatalogConfig
	logger  observability.Logger
}

// initApplication initializes all application components.
func initApplication(cfg *config.CatalogConfig, bootstrap observability.Logger) *application {
	logger := configureLogger(cfg, bootstrap)

	metrics := observability.NewMetrics(config.DefaultServiceName)
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	tracer := initTracer(cfg, logger)

	store, err := openStore(context.Background(), cfg, logger, metrics)
	if err != nil {
		logger.Fatal("failed to open catalog store", observability.Error(err))
	}

	responseCache, err := cache.New(&cfg.Spec.Cache, logger)
	if err != nil {
		logger.Fatal("failed to create response cache", observability.Error(err))
	}

	srv, err := server.New(cfg, store,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracer(tracer),
		server.WithCache(responseCache),
	)
	if err != nil {
		logger.Fatal("failed to create server", observability.Error(err))
	}

	return &application{
		server:  srv,
		store:   store,
		cache:   responseCache,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
		logger:  logger,
	}
}

// configureLogger replaces the bootstrap logger with one built from the
// configuration. The bootstrap logger is kept if the settings are unusable.
func configureLogger(cfg *config.CatalogConfig, bootstrap observability.Logger) observability.Logger {
	logCfg := cfg.Spec.Observability.Logging
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  logCfg.Level,
		Format: logCfg.Format,
		Output: logCfg.Output,
	})
	if err != nil {
		bootstrap.Warn("keeping bootstrap logger", observability.Error(err))
		return bootstrap
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// initTracer initializes the tracer.
func initTracer(cfg *config.CatalogConfig, logger observability.Logger) *observability.Tracer {
	tracing := cfg.Spec.Observability.Tracing
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    orDefault(tracing.ServiceName, config.DefaultServiceName),
		ServiceVersion: version,
		OTLPEndpoint:   tracing.OTLPEndpoint,
		Insecure:       tracing.Insecure,
		SamplingRate:   tracing.SamplingRate,
		Enabled:        tracing.Enabled,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// openStore connects to the database and loads the seed document when one
// is configured.
func openStore(
	ctx context.Context,
	cfg *config.CatalogConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) (*catalog.Store, error) {
	db, err := catalog.Open(ctx, &cfg.Spec.Database, logger)
	if err != nil {
		return nil, err
	}

	store := catalog.NewStore(db,
		catalog.WithStoreLogger(logger),
		catalog.WithStoreMetrics(metrics),
	)

	seedFile := cfg.Spec.Database.SeedFile
	if seedFile == "" {
		return store, nil
	}

	doc, err := catalog.LoadSeedFile(seedFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.Seed(ctx, doc); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	logger.Info("catalog seeded",
		observability.String("file", seedFile),
		observability.Int("tenants", len(doc.Tenants)),
	)
	return store, nil
}

// startConfigWatcher starts the configuration watcher.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, reloadHandler(app.server, logger),
		config.WithLogger(logger),
		config.WithErrorCallback(func(err error) {
			logger.Error("configuration reload failed", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}

// reloadHandler applies rate limit and log level changes to the running
// server. Other sections need a restart and are only reported.
func reloadHandler(srv *server.Server, logger observability.Logger) config.ReloadCallback {
	return func(previous, current *config.CatalogConfig) {
		changed := config.ChangedSections(previous, current)
		if len(changed) == 0 {
			return
		}

		var restart []string
		for _, section := range changed {
			switch section {
			case "rateLimit":
				srv.RateLimiter().Apply(&current.Spec.RateLimit)
				logger.Info("rate limit updated",
					observability.Bool("enabled", current.Spec.RateLimit.Enabled),
					observability.Int("requests_per_second", current.Spec.RateLimit.RequestsPerSecond),
					observability.Int("burst", current.Spec.RateLimit.Burst),
				)
				continue
			case "observability":
				if applyLogLevel(previous, current, logger) {
					continue
				}
			}
			restart = append(restart, section)
		}

		if len(restart) > 0 {
			logger.Warn("configuration changes require a restart",
				observability.Strings("sections", restart),
			)
		}
	}
}

// applyLogLevel changes the level of logger when the level is the only
// observability setting that changed.
func applyLogLevel(previous, current *config.CatalogConfig, logger observability.Logger) bool {
	before, after := previous.Spec.Observability, current.Spec.Observability
	before.Logging.Level = after.Logging.Level
	if before != after {
		return false
	}

	if err := observability.SetLogLevel(logger, after.Logging.Level); err != nil {
		logger.Warn("log level not applied", observability.Error(err))
		return false
	}
	logger.Info("log level updated", observability.String("level", after.Logging.Level))
	return true
}
