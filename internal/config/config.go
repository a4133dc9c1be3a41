// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	FrontendURL string
	DBPath      string
	Assistant   AssistantConfig
	Session     SessionConfig
	SSE         SSEConfig
	RateLimit   RateLimitConfig
	Journal     JournalConfig
}

// AssistantConfig controls the remote question-answering backend.
type AssistantConfig struct {
	BaseURL             string
	AskTimeout          time.Duration
	HealthTimeout       time.Duration
	Mock                bool
	RatePerSecond       float64
	Burst               int
	HealthProbeInterval time.Duration
}

// SessionConfig controls widget session lifetime.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// SSEConfig controls the change stream pushed to browsers.
type SSEConfig struct {
	KeepaliveInterval  time.Duration
	RetryDelay         time.Duration
	QueueSize          int
	MaxRequestBodySize int64
}

// RateLimitConfig controls per-visitor submit throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// JournalConfig controls the exchange journal.
type JournalConfig struct {
	Enabled       bool
	Retention     time.Duration
	PruneInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/widget.db"),
		Assistant: AssistantConfig{
			BaseURL:             strings.TrimRight(getEnv("ASSISTANT_BASE_URL", "http://localhost:5000"), "/"),
			AskTimeout:          getEnvDuration("ASSISTANT_ASK_TIMEOUT", 10*time.Second),
			HealthTimeout:       getEnvDuration("ASSISTANT_HEALTH_TIMEOUT", 5*time.Second),
			Mock:                getEnvBool("ASSISTANT_MOCK", false),
			RatePerSecond:       getEnvFloat("ASSISTANT_RATE_PER_SEC", 20),
			Burst:               getEnvInt("ASSISTANT_BURST", 40),
			HealthProbeInterval: getEnvDuration("HEALTH_PROBE_INTERVAL", 30*time.Second),
		},
		Session: SessionConfig{
			IdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		SSE: SSEConfig{
			KeepaliveInterval:  getEnvDuration("SSE_KEEPALIVE_INTERVAL", 10*time.Second),
			RetryDelay:         getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
			QueueSize:          getEnvInt("SSE_QUEUE_SIZE", 100),
			MaxRequestBodySize: int64(getEnvInt("SSE_MAX_REQUEST_BODY", 1<<20)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Journal: JournalConfig{
			Enabled:       getEnvBool("JOURNAL_ENABLED", true),
			Retention:     getEnvDuration("JOURNAL_RETENTION", 30*24*time.Hour),
			PruneInterval: getEnvDuration("JOURNAL_PRUNE_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Assistant.BaseURL == "" && !c.Assistant.Mock {
		return fmt.Errorf("ASSISTANT_BASE_URL cannot be empty")
	}
	if c.Assistant.AskTimeout <= 0 {
		return fmt.Errorf("ASSISTANT_ASK_TIMEOUT must be > 0")
	}
	if c.Assistant.HealthTimeout <= 0 {
		return fmt.Errorf("ASSISTANT_HEALTH_TIMEOUT must be > 0")
	}
	if c.Assistant.RatePerSecond <= 0 || c.Assistant.Burst <= 0 {
		return fmt.Errorf("ASSISTANT_RATE_PER_SEC and ASSISTANT_BURST must be > 0")
	}
	if c.Session.IdleTTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL and SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.SSE.QueueSize <= 0 {
		return fmt.Errorf("SSE_QUEUE_SIZE must be > 0")
	}
	if c.SSE.MaxRequestBodySize <= 0 {
		return fmt.Errorf("SSE_MAX_REQUEST_BODY must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Journal.Enabled && (c.Journal.Retention <= 0 || c.Journal.PruneInterval <= 0) {
		return fmt.Errorf("JOURNAL_RETENTION and JOURNAL_PRUNE_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins the widget may be embedded from.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("10s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
