package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mescon/timr/internal/format"
)

// Version is set at build time via -ldflags
// Default "dev" is used for development builds
var Version = "dev"

// Config holds all application configuration loaded from environment variables.
// All fields have sensible defaults if environment variables are not set.
type Config struct {
	// Port is the HTTP server listen port (default: 3090)
	Port string

	// BasePath is the URL base path for reverse proxy setups (default: "/")
	// Example: "/timr" if hosting at domain.com/timr/
	BasePath string

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// DefaultFormat is the template for timers created without formatOutput
	// (default: "DD hh:{mm:ss}")
	DefaultFormat string

	// TickInterval is the wall time between two ticks of server timers (default: 1s).
	// Every tick still counts one second.
	TickInterval time.Duration

	// NotifyURLs are shoutrrr URLs (or Discord/Slack/generic webhook URLs) that receive a
	// message whenever a countdown finishes. Comma separated in TIMR_NOTIFY_URLS.
	NotifyURLs []string

	// NotifyThrottle suppresses repeated notifications for the same timer (default: 0, off)
	NotifyThrottle time.Duration

	// NotifyRetries is the number of delivery attempts per target (default: 3)
	NotifyRetries int

	// CORSOrigin is the allowed Access-Control-Allow-Origin value; empty disables CORS
	CORSOrigin string

	// RateLimitRPS is the per-IP request rate allowed on timer-creating endpoints (default: 5)
	RateLimitRPS float64

	// RateLimitBurst is the burst size for that limiter (default: 10)
	RateLimitBurst int

	// EventBufferSize is the per-subscriber event buffer of the event bus (default: 256)
	EventBufferSize int

	// DataDir is the directory for persistent data (presets file, logs)
	// Default: /config in Docker, ./config locally
	DataDir string

	// PresetsFile is the YAML file with timers created at startup
	// (default: <DataDir>/presets.yaml)
	PresetsFile string

	// LogDir is the directory for log files (default: <DataDir>/logs)
	LogDir string
}

// Global singleton
var cfg *Config

// Load reads configuration from environment variables with sensible defaults.
// Should be called once at application startup.
func Load() *Config {
	// Determine DataDir - this is where all persistent data lives
	dataDir := getEnvOrDefault("TIMR_DATA_DIR", "")
	if dataDir == "" {
		if info, err := os.Stat("/config"); err == nil && info.IsDir() {
			dataDir = "/config"
		} else if execPath, err := os.Executable(); err == nil {
			dataDir = filepath.Join(filepath.Dir(execPath), "config")
		} else {
			dataDir = "./config"
		}
	}

	// Ensure dataDir is absolute
	if absDataDir, err := filepath.Abs(dataDir); err == nil {
		dataDir = absDataDir
	}

	logDir := getEnvOrDefault("TIMR_LOG_DIR", filepath.Join(dataDir, "logs"))

	cfg = &Config{
		Port:            getEnvOrDefault("TIMR_PORT", "3090"),
		BasePath:        normalizeBasePath(getEnvOrDefault("TIMR_BASE_PATH", "/")),
		LogLevel:        normalizeLogLevel(getEnvOrDefault("TIMR_LOG_LEVEL", "info")),
		DefaultFormat:   getEnvOrDefault("TIMR_DEFAULT_FORMAT", format.DefaultFormatOutput),
		TickInterval:    getEnvDurationOrDefault("TIMR_TICK_INTERVAL", time.Second),
		NotifyURLs:      getEnvListOrDefault("TIMR_NOTIFY_URLS", nil),
		NotifyThrottle:  getEnvDurationOrDefault("TIMR_NOTIFY_THROTTLE", 0),
		NotifyRetries:   getEnvIntOrDefault("TIMR_NOTIFY_RETRIES", 3),
		CORSOrigin:      getEnvOrDefault("TIMR_CORS_ORIGIN", ""),
		RateLimitRPS:    getEnvFloatOrDefault("TIMR_RATE_LIMIT_RPS", 5.0),
		RateLimitBurst:  getEnvIntOrDefault("TIMR_RATE_LIMIT_BURST", 10),
		EventBufferSize: getEnvIntOrDefault("TIMR_EVENT_BUFFER", 256),
		DataDir:         dataDir,
		PresetsFile:     getEnvOrDefault("TIMR_PRESETS_FILE", filepath.Join(dataDir, "presets.yaml")),
		LogDir:          logDir,
	}

	return cfg
}

// Get returns the current configuration. Panics if Load() hasn't been called.
func Get() *Config {
	if cfg == nil {
		panic("config.Load() must be called before config.Get()")
	}
	return cfg
}

// SetForTesting allows tests to set the global config without calling Load().
// This should ONLY be used in test code.
func SetForTesting(c *Config) {
	cfg = c
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		Port:            "8080",
		BasePath:        "/",
		LogLevel:        "debug",
		DefaultFormat:   format.DefaultFormatOutput,
		TickInterval:    time.Second,
		NotifyRetries:   1,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
		EventBufferSize: 256,
		DataDir:         "/tmp/timr-test",
		PresetsFile:     "/tmp/timr-test/presets.yaml",
		LogDir:          "/tmp/timr-test/logs",
	}
}

// normalizeBasePath ensures the path starts with / and doesn't end with /
func normalizeBasePath(basePath string) string {
	if basePath == "" || basePath == "/" {
		return "/"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimSuffix(basePath, "/")
}

// normalizeLogLevel lowercases level and falls back to info for unknown values.
func normalizeLogLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	default:
		return "info"
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable as a duration or the default if not set/invalid.
// Accepts Go duration strings like "30s", "5m", "72h".
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvFloatOrDefault returns the environment variable as a float64 or the default if not set/invalid.
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FlagOverrides holds command-line flag values that can override environment variables
type FlagOverrides struct {
	Port          *string
	BasePath      *string
	LogLevel      *string
	DefaultFormat *string
	TickInterval  *time.Duration
	DataDir       *string
	PresetsFile   *string
	LogDir        *string
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Should be called after Load() and after flag parsing.
// Only non-nil values with non-default flag values will override.
func ApplyFlags(flags FlagOverrides) {
	if cfg == nil {
		return
	}

	if flags.Port != nil && *flags.Port != "" {
		cfg.Port = *flags.Port
	}
	if flags.BasePath != nil && *flags.BasePath != "" {
		cfg.BasePath = normalizeBasePath(*flags.BasePath)
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.LogLevel = normalizeLogLevel(*flags.LogLevel)
	}
	if flags.DefaultFormat != nil && *flags.DefaultFormat != "" {
		cfg.DefaultFormat = *flags.DefaultFormat
	}
	if flags.TickInterval != nil && *flags.TickInterval > 0 {
		cfg.TickInterval = *flags.TickInterval
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.DataDir = *flags.DataDir
	}
	if flags.PresetsFile != nil && *flags.PresetsFile != "" {
		cfg.PresetsFile = *flags.PresetsFile
	}
	if flags.LogDir != nil && *flags.LogDir != "" {
		cfg.LogDir = *flags.LogDir
	}
}
