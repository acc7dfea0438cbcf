package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the collection conversation
// service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	SessionIdleTimeout time.Duration
	JanitorInterval    time.Duration
	RepromptLimit      int

	ClassifierMode string
	NLUEndpoint    string
	NLUTimeout     time.Duration

	DirectoryURL     string
	DirectoryTimeout time.Duration

	NotifyEndpoint  string
	DeliveryTimeout time.Duration

	DatabaseURL string
	RepliesPath string

	CampaignEnabled bool
	CampaignCron    string
	ReminderDays    []int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "duecall"),
		AllowAnyOrigin:   false,
		ShutdownTimeout:  15 * time.Second,
		// Sessions idle longer than this are archived by the janitor.
		SessionIdleTimeout: 15 * time.Minute,
		JanitorInterval:    30 * time.Second,
		RepromptLimit:      3,
		ClassifierMode:     envOrDefault("CLASSIFIER_MODE", "auto"),
		NLUEndpoint:        trimEnv("NLU_ENDPOINT"),
		NLUTimeout:         5 * time.Second,
		DirectoryURL:       trimEnv("DIRECTORY_URL"),
		DirectoryTimeout:   5 * time.Second,
		NotifyEndpoint:     trimEnv("NOTIFY_ENDPOINT"),
		DeliveryTimeout:    10 * time.Second,
		DatabaseURL:        trimEnv("DATABASE_URL"),
		RepliesPath:        trimEnv("REPLIES_PATH"),
		CampaignEnabled:    false,
		CampaignCron:       envOrDefault("CAMPAIGN_CRON", "@every 1h"),
		ReminderDays:       []int{7, 3, 1, 0},
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JanitorInterval, err = durationFromEnv("SESSION_JANITOR_INTERVAL", cfg.JanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RepromptLimit, err = intFromEnv("REPROMPT_LIMIT", cfg.RepromptLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.NLUTimeout, err = durationFromEnv("NLU_TIMEOUT", cfg.NLUTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DirectoryTimeout, err = durationFromEnv("DIRECTORY_TIMEOUT", cfg.DirectoryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DeliveryTimeout, err = durationFromEnv("DELIVERY_TIMEOUT", cfg.DeliveryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CampaignEnabled, err = boolFromEnv("CAMPAIGN_ENABLED", cfg.CampaignEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.ReminderDays, err = intListFromEnv("CAMPAIGN_REMINDER_DAYS", cfg.ReminderDays)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.RepromptLimit <= 0 {
		return Config{}, fmt.Errorf("REPROMPT_LIMIT must be positive")
	}
	if cfg.DeliveryTimeout <= 0 {
		return Config{}, fmt.Errorf("DELIVERY_TIMEOUT must be positive")
	}
	switch cfg.ClassifierMode {
	case "auto", "rules", "remote":
	default:
		return Config{}, fmt.Errorf("invalid CLASSIFIER_MODE: %q (expected auto|rules|remote)", cfg.ClassifierMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

func intListFromEnv(key string, fallback []int) ([]int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%s parse error: %w", key, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s values must be >= 0", key)
		}
		out = append(out, n)
	}
	return out, nil
}
