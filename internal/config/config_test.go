package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mescon/timr/internal/format"
)

// =============================================================================
// Helper functions tests
// =============================================================================

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TIMR_TEST_SET", "custom-value")

	if got := getEnvOrDefault("TIMR_TEST_SET", "default"); got != "custom-value" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "custom-value")
	}
	if got := getEnvOrDefault("TIMR_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "default")
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{"valid", "42", 42},
		{"negative", "-5", -5},
		{"invalid", "abc", 7},
		{"float", "3.14", 7},
		{"unset", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TIMR_TEST_INT", tt.envValue)
			if got := getEnvIntOrDefault("TIMR_TEST_INT", 7); got != tt.expected {
				t.Errorf("getEnvIntOrDefault() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"seconds", "30s", 30 * time.Second},
		{"millis", "250ms", 250 * time.Millisecond},
		{"invalid", "soon", time.Second},
		{"bare number", "5", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TIMR_TEST_DURATION", tt.envValue)
			if got := getEnvDurationOrDefault("TIMR_TEST_DURATION", time.Second); got != tt.expected {
				t.Errorf("getEnvDurationOrDefault() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetEnvFloatOrDefault(t *testing.T) {
	t.Setenv("TIMR_TEST_FLOAT", "2.5")
	if got := getEnvFloatOrDefault("TIMR_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloatOrDefault() = %v, want 2.5", got)
	}
	t.Setenv("TIMR_TEST_FLOAT", "fast")
	if got := getEnvFloatOrDefault("TIMR_TEST_FLOAT", 1); got != 1 {
		t.Errorf("getEnvFloatOrDefault() = %v, want 1", got)
	}
}

func TestGetEnvListOrDefault(t *testing.T) {
	t.Setenv("TIMR_TEST_LIST", " ntfy://a , ,gotify://b,")
	got := getEnvListOrDefault("TIMR_TEST_LIST", nil)
	want := []string{"ntfy://a", "gotify://b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvListOrDefault() = %v, want %v", got, want)
	}

	if got := getEnvListOrDefault("TIMR_TEST_LIST_UNSET", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("getEnvListOrDefault() = %v, want [x]", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := map[string]string{
		"":       "/",
		"/":      "/",
		"timr":   "/timr",
		"/timr/": "/timr",
		"/a/b":   "/a/b",
	}
	for in, want := range tests {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	tests := map[string]string{
		"DEBUG":   "debug",
		" warn ":  "warn",
		"error":   "error",
		"verbose": "info",
		"":        "info",
	}
	for in, want := range tests {
		if got := normalizeLogLevel(in); got != want {
			t.Errorf("normalizeLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

// =============================================================================
// Load / Get tests
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"TIMR_PORT", "TIMR_BASE_PATH", "TIMR_LOG_LEVEL", "TIMR_DEFAULT_FORMAT",
		"TIMR_TICK_INTERVAL", "TIMR_NOTIFY_URLS", "TIMR_NOTIFY_THROTTLE", "TIMR_CORS_ORIGIN",
		"TIMR_NOTIFY_RETRIES", "TIMR_RATE_LIMIT_RPS", "TIMR_RATE_LIMIT_BURST", "TIMR_EVENT_BUFFER",
		"TIMR_PRESETS_FILE", "TIMR_LOG_DIR",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	tmpDir := t.TempDir()
	t.Setenv("TIMR_DATA_DIR", tmpDir)

	c := Load()

	if c.Port != "3090" {
		t.Errorf("Default Port = %s, want 3090", c.Port)
	}
	if c.BasePath != "/" {
		t.Errorf("Default BasePath = %s, want /", c.BasePath)
	}
	if c.LogLevel != "info" {
		t.Errorf("Default LogLevel = %s, want info", c.LogLevel)
	}
	if c.DefaultFormat != format.DefaultFormatOutput {
		t.Errorf("Default DefaultFormat = %s, want %s", c.DefaultFormat, format.DefaultFormatOutput)
	}
	if c.TickInterval != time.Second {
		t.Errorf("Default TickInterval = %v, want 1s", c.TickInterval)
	}
	if c.NotifyURLs != nil {
		t.Errorf("Default NotifyURLs = %v, want nil", c.NotifyURLs)
	}
	if c.NotifyRetries != 3 {
		t.Errorf("Default NotifyRetries = %d, want 3", c.NotifyRetries)
	}
	if c.RateLimitRPS != 5.0 || c.RateLimitBurst != 10 {
		t.Errorf("Default rate limit = %v/%d, want 5/10", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.EventBufferSize != 256 {
		t.Errorf("Default EventBufferSize = %d, want 256", c.EventBufferSize)
	}
	if c.PresetsFile != filepath.Join(tmpDir, "presets.yaml") {
		t.Errorf("Default PresetsFile = %s", c.PresetsFile)
	}
	if c.LogDir != filepath.Join(tmpDir, "logs") {
		t.Errorf("Default LogDir = %s", c.LogDir)
	}
	if Get() != c {
		t.Error("Get() should return the loaded config")
	}
}

func TestLoad_CustomEnvVars(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("TIMR_DATA_DIR", tmpDir)
	t.Setenv("TIMR_PORT", "8080")
	t.Setenv("TIMR_BASE_PATH", "timers/")
	t.Setenv("TIMR_LOG_LEVEL", "DEBUG")
	t.Setenv("TIMR_DEFAULT_FORMAT", "{mm:ss}")
	t.Setenv("TIMR_TICK_INTERVAL", "100ms")
	t.Setenv("TIMR_NOTIFY_URLS", "ntfy://ntfy.sh/a,gotify://host/tok")
	t.Setenv("TIMR_NOTIFY_THROTTLE", "1m")
	t.Setenv("TIMR_NOTIFY_RETRIES", "5")
	t.Setenv("TIMR_CORS_ORIGIN", "http://localhost:5173")
	t.Setenv("TIMR_RATE_LIMIT_RPS", "10.5")
	t.Setenv("TIMR_RATE_LIMIT_BURST", "20")
	t.Setenv("TIMR_PRESETS_FILE", "/etc/timr/presets.yaml")
	t.Setenv("TIMR_LOG_DIR", "/var/log/timr")

	c := Load()

	if c.Port != "8080" {
		t.Errorf("Port = %s, want 8080", c.Port)
	}
	if c.BasePath != "/timers" {
		t.Errorf("BasePath = %s, want /timers", c.BasePath)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", c.LogLevel)
	}
	if c.DefaultFormat != "{mm:ss}" {
		t.Errorf("DefaultFormat = %s, want {mm:ss}", c.DefaultFormat)
	}
	if c.TickInterval != 100*time.Millisecond {
		t.Errorf("TickInterval = %v, want 100ms", c.TickInterval)
	}
	if len(c.NotifyURLs) != 2 {
		t.Errorf("NotifyURLs = %v, want 2 entries", c.NotifyURLs)
	}
	if c.NotifyThrottle != time.Minute {
		t.Errorf("NotifyThrottle = %v, want 1m", c.NotifyThrottle)
	}
	if c.NotifyRetries != 5 {
		t.Errorf("NotifyRetries = %d, want 5", c.NotifyRetries)
	}
	if c.CORSOrigin != "http://localhost:5173" {
		t.Errorf("CORSOrigin = %s", c.CORSOrigin)
	}
	if c.RateLimitRPS != 10.5 || c.RateLimitBurst != 20 {
		t.Errorf("rate limit = %v/%d, want 10.5/20", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.PresetsFile != "/etc/timr/presets.yaml" {
		t.Errorf("PresetsFile = %s", c.PresetsFile)
	}
	if c.LogDir != "/var/log/timr" {
		t.Errorf("LogDir = %s", c.LogDir)
	}
}

func TestGet_PanicsWhenNotLoaded(t *testing.T) {
	SetForTesting(nil)
	defer func() {
		if r := recover(); r == nil {
			t.Error("Get() should panic before Load()")
		}
	}()
	Get()
}

func TestSetForTesting(t *testing.T) {
	c := NewTestConfig()
	SetForTesting(c)
	defer SetForTesting(nil)

	if Get() != c {
		t.Error("Get() should return the config passed to SetForTesting")
	}
	if c.Port != "8080" || c.LogLevel != "debug" {
		t.Errorf("unexpected test config: %+v", c)
	}
}

// =============================================================================
// ApplyFlags tests
// =============================================================================

func TestApplyFlags_NilConfig(t *testing.T) {
	SetForTesting(nil)
	port := "9999"
	// must not panic
	ApplyFlags(FlagOverrides{Port: &port})
}

func TestApplyFlags_AllFlags(t *testing.T) {
	SetForTesting(NewTestConfig())
	defer SetForTesting(nil)

	port := "9999"
	basePath := "timr/"
	logLevel := "ERROR"
	defaultFormat := "{ss}"
	tick := 10 * time.Millisecond
	dataDir := "/data"
	presets := "/data/p.yaml"
	logDir := "/data/l"

	ApplyFlags(FlagOverrides{
		Port:          &port,
		BasePath:      &basePath,
		LogLevel:      &logLevel,
		DefaultFormat: &defaultFormat,
		TickInterval:  &tick,
		DataDir:       &dataDir,
		PresetsFile:   &presets,
		LogDir:        &logDir,
	})

	c := Get()
	if c.Port != "9999" {
		t.Errorf("Port = %s, want 9999", c.Port)
	}
	if c.BasePath != "/timr" {
		t.Errorf("BasePath = %s, want /timr", c.BasePath)
	}
	if c.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error", c.LogLevel)
	}
	if c.DefaultFormat != "{ss}" {
		t.Errorf("DefaultFormat = %s, want {ss}", c.DefaultFormat)
	}
	if c.TickInterval != tick {
		t.Errorf("TickInterval = %v, want %v", c.TickInterval, tick)
	}
	if c.DataDir != dataDir || c.PresetsFile != presets || c.LogDir != logDir {
		t.Errorf("paths = %s %s %s", c.DataDir, c.PresetsFile, c.LogDir)
	}
}

func TestApplyFlags_ZeroValuesNotApplied(t *testing.T) {
	SetForTesting(NewTestConfig())
	defer SetForTesting(nil)

	empty := ""
	zero := time.Duration(0)
	ApplyFlags(FlagOverrides{Port: &empty, LogLevel: &empty, TickInterval: &zero})

	c := Get()
	if c.Port != "8080" || c.LogLevel != "debug" || c.TickInterval != time.Second {
		t.Errorf("zero flags should not override: %+v", c)
	}
}
