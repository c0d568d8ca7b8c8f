// Package config loads the control plane's runtime configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full runtime configuration.
type Config struct {
	// HTTP API
	HTTPPort string

	// Watchloop
	WatchloopEnabled  bool
	WatchloopInterval time.Duration

	// Approvals
	ApprovalTimeout        time.Duration
	AutoRemediationEnabled bool

	// Alertmanager webhook ingress
	WebhookSecret   string
	SignatureHeader string
	TimestampHeader string

	// NotificationChannel is the default reply target ("type:id") for
	// automated runs.
	NotificationChannel string

	// Backing services. Empty values disable the integration.
	DatabaseURL  string
	RedisURL     string
	SlackToken   string
	SlackChannel string
	MCPServerURL string

	// RulesFile optionally seeds the rule engine from a YAML file in
	// addition to the builtin rules.
	RulesFile string
}

// FromEnv builds the configuration from environment variables, applying
// defaults for everything optional.
func FromEnv() (Config, error) {
	intervalSeconds, err := intEnv("WATCHLOOP_INTERVAL_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	if intervalSeconds <= 0 {
		return Config{}, fmt.Errorf("WATCHLOOP_INTERVAL_SECONDS must be positive, got %d", intervalSeconds)
	}
	timeoutSeconds, err := intEnv("APPROVAL_TIMEOUT_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}
	if timeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("APPROVAL_TIMEOUT_SECONDS must be positive, got %d", timeoutSeconds)
	}
	watchEnabled, err := boolEnv("WATCHLOOP_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	autoRemediation, err := boolEnv("AUTO_REMEDIATION_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:               getEnvOrDefault("HTTP_PORT", "8080"),
		WatchloopEnabled:       watchEnabled,
		WatchloopInterval:      time.Duration(intervalSeconds) * time.Second,
		ApprovalTimeout:        time.Duration(timeoutSeconds) * time.Second,
		AutoRemediationEnabled: autoRemediation,
		WebhookSecret:          os.Getenv("ALERTMANAGER_WEBHOOK_SECRET"),
		SignatureHeader:        getEnvOrDefault("ALERTMANAGER_SIGNATURE_HEADER", "X-Alertmanager-Signature"),
		TimestampHeader:        getEnvOrDefault("ALERTMANAGER_TIMESTAMP_HEADER", "X-Alertmanager-Timestamp"),
		NotificationChannel:    os.Getenv("AIOPS_NOTIFICATION_CHANNEL"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		SlackToken:             os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:           os.Getenv("SLACK_CHANNEL"),
		MCPServerURL:           os.Getenv("MCP_SERVER_URL"),
		RulesFile:              os.Getenv("RULES_FILE"),
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func boolEnv(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
