// Package config loads twintype settings from the environment, an optional
// .env file and the startup YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the twintype controller.
type Config struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	EvalTimeoutMS int

	// HTTP API
	BindAddr       string
	PortCandidates []string
	AutoFallback   bool

	// Logging
	LogLevel string
	LogFile  string

	// Files
	StateFile    string
	ProfilesFile string
	StartupFile  string

	// Browser launch
	LaunchBrowser bool
	ProfileDir    string

	// Toast forwarding
	NTFYEndpoint string
	NTFYMinLevel string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:     getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		EvalTimeoutMS:  getEnvIntOrDefault("TWINTYPE_EVAL_TIMEOUT_MS", 5000),
		BindAddr:       getEnvOrDefault("TWINTYPE_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates: splitList(getEnvOrDefault("TWINTYPE_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192")),
		AutoFallback:   getEnvBoolOrDefault("TWINTYPE_PORT_AUTO_FALLBACK", true),
		LogLevel:       strings.ToLower(getEnvOrDefault("TWINTYPE_LOG_LEVEL", "info")),
		LogFile:        getEnvOrDefault("TWINTYPE_LOG_FILE", "logs/twintype.log"),
		StateFile:      getEnvOrDefault("TWINTYPE_STATE_FILE", "./data/state.json"),
		ProfilesFile:   getEnvOrDefault("TWINTYPE_PROFILES_FILE", "./config/providers.yaml"),
		StartupFile:    getEnvOrDefault("TWINTYPE_STARTUP_FILE", "./config/startup.yaml"),
		LaunchBrowser:  getEnvBoolOrDefault("TWINTYPE_LAUNCH_BROWSER", false),
		ProfileDir:     getEnvOrDefault("TWINTYPE_PROFILE_DIR", "./browser_profile"),
		NTFYEndpoint:   getEnvOrDefault("TWINTYPE_NTFY_ENDPOINT", ""),
		NTFYMinLevel:   strings.ToLower(getEnvOrDefault("TWINTYPE_NTFY_MIN_LEVEL", "error")),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.CDPPort <= 0 || cfg.CDPPort > 65535 {
		return nil, fmt.Errorf("config: CHROMIUM_CDP_PORT out of range: %d", cfg.CDPPort)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

// EvalTimeout returns the per-evaluation timeout.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

// SlogLevel maps LogLevel to a slog level; unknown values are info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
