package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = "10000"
	defaultMaxHistory       = 100
	defaultHistoryMaxAge    = 24 * time.Hour
	defaultSweepCron        = "*/10 * * * *"
	defaultLogLevel         = "info"
	defaultMaxFrameBytes    = 10 * 1024 * 1024
	defaultRateLimitRPS     = 20
	defaultRateLimitBurst   = 40
	defaultNotificationIcon = "/icon.png"
)

// Config holds all runtime configuration for the relay.
// Values come from a .env file, an optional YAML file and the environment,
// in increasing order of precedence.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string `yaml:"port"`

	// MaxHistory is the capacity of the shared history window
	MaxHistory int `yaml:"max_history"`

	// HistoryMaxAge is the age past which the sweeper evicts history entries.
	// The YAML file spells it as a Go duration string.
	HistoryMaxAge time.Duration `yaml:"-"`

	// SweepCron is the cron expression driving the history sweeper
	SweepCron string `yaml:"history_sweep_cron"`

	// CORSOrigins lists the allowed origins; "*" allows any
	CORSOrigins []string `yaml:"cors_origins"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// MaxFrameBytes bounds a single inbound websocket frame.
	// File payloads travel inline, so this is generous.
	MaxFrameBytes int64 `yaml:"max_frame_bytes"`

	// RateLimitRPS and RateLimitBurst shape the per-connection inbound budget
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// NotificationIcon is the icon sent with push-style mention alerts
	// when the sender has no avatar
	NotificationIcon string `yaml:"notification_icon"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		ServerPort:       defaultPort,
		MaxHistory:       defaultMaxHistory,
		HistoryMaxAge:    defaultHistoryMaxAge,
		SweepCron:        defaultSweepCron,
		CORSOrigins:      []string{"*"},
		LogLevel:         defaultLogLevel,
		MaxFrameBytes:    defaultMaxFrameBytes,
		RateLimitRPS:     defaultRateLimitRPS,
		RateLimitBurst:   defaultRateLimitBurst,
		NotificationIcon: defaultNotificationIcon,
	}
}

// Load reads environment variables and returns a populated Config struct.
// It will load from a .env file if present, then from the YAML file named by
// CONFIG_FILE, then from environment variables.
// Falls back to sensible defaults if values are not set or invalid.
func Load() *Config {
	// Attempt to load .env file - not an error if it doesn't exist
	// as we may be running in production with real environment variables
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	cfg.sanitize()
	return cfg
}

// loadFile overlays values from a YAML file onto cfg.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file struct {
		Config        `yaml:",inline"`
		HistoryMaxAge string `yaml:"history_max_age"`
	}
	file.Config = *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	maxAge := c.HistoryMaxAge
	*c = file.Config
	c.HistoryMaxAge = maxAge
	if file.HistoryMaxAge != "" {
		c.HistoryMaxAge = parseDuration("history_max_age", file.HistoryMaxAge, maxAge)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.ServerPort = v
	}
	if v := os.Getenv("MAX_HISTORY"); v != "" {
		c.MaxHistory = parseInt("MAX_HISTORY", v, c.MaxHistory)
	}
	if v := os.Getenv("HISTORY_MAX_AGE"); v != "" {
		c.HistoryMaxAge = parseDuration("HISTORY_MAX_AGE", v, c.HistoryMaxAge)
	}
	if v := os.Getenv("HISTORY_SWEEP_CRON"); v != "" {
		c.SweepCron = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = parseOrigins(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("MAX_FRAME_BYTES"); v != "" {
		c.MaxFrameBytes = int64(parseInt("MAX_FRAME_BYTES", v, int(c.MaxFrameBytes)))
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil && rps > 0 {
			c.RateLimitRPS = rps
		} else {
			slog.Warn("invalid config value, keeping default", "key", "RATE_LIMIT_RPS", "value", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		c.RateLimitBurst = parseInt("RATE_LIMIT_BURST", v, c.RateLimitBurst)
	}
	if v := os.Getenv("DEFAULT_NOTIFICATION_ICON"); v != "" {
		c.NotificationIcon = v
	}
}

// sanitize replaces out-of-range values with defaults.
func (c *Config) sanitize() {
	if c.ServerPort == "" {
		c.ServerPort = defaultPort
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaultMaxHistory
	}
	if c.HistoryMaxAge <= 0 {
		c.HistoryMaxAge = defaultHistoryMaxAge
	}
	if !gronx.IsValid(c.SweepCron) {
		slog.Warn("invalid sweep cron, keeping default", "cron", c.SweepCron)
		c.SweepCron = defaultSweepCron
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = defaultMaxFrameBytes
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = defaultRateLimitRPS
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if c.NotificationIcon == "" {
		c.NotificationIcon = defaultNotificationIcon
	}
}

func parseInt(key, value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	slog.Warn("invalid config value, keeping default", "key", key, "value", value)
	return fallback
}

func parseDuration(key, value string, fallback time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	slog.Warn("invalid config value, keeping default", "key", key, "value", value)
	return fallback
}

// parseOrigins splits a comma-separated origin list and trims whitespace
func parseOrigins(value string) []string {
	parts := strings.Split(value, ",")
	origins := make([]string, 0, len(parts))
	for _, origin := range parts {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
