// Package config provides configuration loading from environment variables.
package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
)

// ServiceConfig holds configuration for the events service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)

	LoggingSink bool          // mirror queue traffic to the service log
	Webhook     WebhookConfig // active when URL is set
	Kafka       KafkaConfig   // active when brokers are set
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL        string
	SigningKey string
	Timeout    time.Duration
}

// Enabled reports whether the webhook sink is configured.
func (c WebhookConfig) Enabled() bool { return c.URL != "" }

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Enabled reports whether the Kafka sink is configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// LoadServiceConfig loads service configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func LoadServiceConfig() *ServiceConfig {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env file")
	}

	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		LoggingSink:       GetBoolEnv("SINK_LOGGING", true),
		Webhook: WebhookConfig{
			URL:        GetEnv("WEBHOOK_URL", ""),
			SigningKey: GetSecretFile(GetEnv("WEBHOOK_SIGNING_KEY_FILE", "")),
			Timeout:    GetDurationEnv("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      GetListEnv("KAFKA_BROKERS", nil),
			Topic:        GetEnv("KAFKA_TOPIC", "autotel.events"),
			WriteTimeout: GetDurationEnv("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		},
	}
}
