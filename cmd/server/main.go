package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mescon/timr/internal/api"
	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/metrics"
	"github.com/mescon/timr/internal/notifier"
	"github.com/mescon/timr/internal/store"
	"github.com/mescon/timr/internal/timer"
)

func main() {
	// Define command line flags (these override environment variables)
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Configuration flags - all can also be set via environment variables (TIMR_*)
	flagPort := flag.String("port", "", "HTTP server port (env: TIMR_PORT, default: 3090)")
	flagBasePath := flag.String("base-path", "", "URL base path for reverse proxy (env: TIMR_BASE_PATH, default: /)")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: TIMR_LOG_LEVEL, default: info)")
	flagDefaultFormat := flag.String("default-format", "", "Template for timers without formatOutput (env: TIMR_DEFAULT_FORMAT)")
	flagTickInterval := flag.Duration("tick-interval", 0, "Wall time between ticks (env: TIMR_TICK_INTERVAL, default: 1s)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: TIMR_DATA_DIR)")
	flagPresetsFile := flag.String("presets", "", "Presets YAML file (env: TIMR_PRESETS_FILE, default: <data-dir>/presets.yaml)")
	flagLogDir := flag.String("log-dir", "", "Log directory (env: TIMR_LOG_DIR, default: <data-dir>/logs)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("timr %s\n", config.Version)
		os.Exit(0)
	}

	config.Load()
	config.ApplyFlags(config.FlagOverrides{
		Port:          flagPort,
		BasePath:      flagBasePath,
		LogLevel:      flagLogLevel,
		DefaultFormat: flagDefaultFormat,
		TickInterval:  flagTickInterval,
		DataDir:       flagDataDir,
		PresetsFile:   flagPresetsFile,
		LogDir:        flagLogDir,
	})
	cfg := config.Get()

	if err := logger.Init(cfg.LogDir); err != nil {
		logger.Errorf("Failed to open log directory %s, logging to stdout only: %v", cfg.LogDir, err)
	}
	defer logger.Close()
	logger.SetLevel(cfg.LogLevel)

	logger.Infof("========================================")
	logger.Infof("Starting timr %s...", config.Version)
	logger.Infof("========================================")

	logger.Infof("Configuration:")
	logger.Infof("  Port: %s", cfg.Port)
	logger.Infof("  Base Path: %s", cfg.BasePath)
	logger.Infof("  Log Level: %s", cfg.LogLevel)
	logger.Infof("  Default Format: %s", cfg.DefaultFormat)
	logger.Infof("  Tick Interval: %s", cfg.TickInterval)
	logger.Infof("  Data Directory: %s", cfg.DataDir)
	logger.Infof("  Presets: %s", cfg.PresetsFile)
	logger.Infof("  Log Directory: %s", cfg.LogDir)
	logger.Infof("  Rate Limit: %.1f req/s (burst: %d)", cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Infof("  Notification URLs: %d", len(cfg.NotifyURLs))

	logger.Infof("Initializing Event Bus...")
	eb := eventbus.NewEventBus(cfg.EventBufferSize)
	logger.Infof("✓ Event Bus initialized (buffer: %d)", cfg.EventBufferSize)

	logger.Infof("Initializing Metrics Service...")
	metricsService := metrics.NewMetricsService(eb, nil)
	metricsService.Start()
	logger.Infof("✓ Metrics Service (Prometheus endpoint at /metrics)")

	logger.Infof("Initializing Notification Service...")
	notifierService, err := notifier.NewNotifier(eb, cfg.NotifyURLs,
		notifier.WithRecorder(metricsService),
		notifier.WithThrottle(cfg.NotifyThrottle),
		notifier.WithRetry(cfg.NotifyRetries, 500*time.Millisecond))
	if err != nil {
		// Non-fatal - the valid URLs are still used
		logger.Errorf("Some notification URLs were rejected: %v", err)
	}
	notifierService.Start()

	timers := store.New(store.WithPublisher(eb))

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		logger.Errorf("Failed to load presets from %s: %v", cfg.PresetsFile, err)
		os.Exit(1)
	}
	if len(presets) > 0 {
		logger.Infof("Creating %d preset timer(s)...", len(presets))
		if err := createPresets(timers, presets, cfg.DefaultFormat, timer.WithTickInterval(cfg.TickInterval)); err != nil {
			logger.Errorf("Some presets could not be created: %v", err)
		}
	}

	logger.Infof("Initializing REST API and WebSocket server...")
	apiServer := api.NewRESTServer(api.ServerDeps{
		Store:    timers,
		EventBus: eb,
		Metrics:  metricsService,
	})
	go func() {
		addr := ":" + cfg.Port
		if err := apiServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to start API server: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("========================================")
	logger.Infof("✓ timr %s started successfully", config.Version)
	logger.Infof("✓ Server listening on port %s", cfg.Port)
	logger.Infof("========================================")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Infof("Stopping API Server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API Server shutdown error: %v", err)
	} else {
		logger.Infof("✓ API Server stopped")
	}

	logger.Infof("Destroying %d timer(s)...", timers.Len())
	timers.DestroyAll()

	logger.Infof("Stopping Event Bus...")
	eb.Shutdown()
	logger.Infof("✓ Event Bus stopped")

	// After the bus: no further finish events can arrive
	logger.Infof("Stopping Notification Service...")
	notifierService.Stop()
	logger.Infof("✓ Notification Service stopped")

	logger.Infof("✓ timr shutdown complete")
}
