package queue

import (
	"time"

	"autotel/internal/config"
	"autotel/pkg/backoff"
	"autotel/pkg/circuitbreaker"
)

// Hardcoded delivery defaults - these rarely need tuning.
const (
	defaultMaxSize         = 1000
	defaultBatchSize       = 50
	defaultFlushInterval   = 5 * time.Second
	defaultMaxRetries      = 3
	defaultDeliveryTimeout = 10 * time.Second
)

// Config holds configuration for the event queue.
type Config struct {
	MaxSize         int                   // buffered events before drop-oldest (default: 1000)
	BatchSize       int                   // buffered events that trigger an early flush (default: 50)
	FlushInterval   time.Duration         // periodic flush interval (default: 5s)
	MaxRetries      int                   // extra delivery rounds per event (default: 3)
	DeliveryTimeout time.Duration         // per-call timeout on subscriber track calls (default: 10s)
	Backoff         backoff.Config        // wait between retry rounds
	Breaker         circuitbreaker.Config // per-subscriber breaker settings
}

// LoadConfigFromEnv loads queue configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxSize:         config.GetIntEnv("QUEUE_MAX_SIZE", defaultMaxSize),
		BatchSize:       config.GetIntEnv("QUEUE_BATCH_SIZE", defaultBatchSize),
		FlushInterval:   config.GetDurationEnv("QUEUE_FLUSH_INTERVAL", defaultFlushInterval),
		MaxRetries:      config.GetIntEnv("QUEUE_MAX_RETRIES", defaultMaxRetries),
		DeliveryTimeout: config.GetDurationEnv("QUEUE_DELIVERY_TIMEOUT", defaultDeliveryTimeout),
		Backoff: backoff.Config{
			Initial: config.GetDurationEnv("QUEUE_RETRY_BACKOFF", 100*time.Millisecond),
			Max:     config.GetDurationEnv("QUEUE_RETRY_BACKOFF_MAX", 5*time.Second),
			Jitter:  config.GetBoolEnv("QUEUE_RETRY_JITTER", true),
		},
		Breaker: circuitbreaker.Config{
			Threshold:    config.GetIntEnv("BREAKER_THRESHOLD", 5),
			ResetTimeout: config.GetDurationEnv("BREAKER_RESET_TIMEOUT", 30*time.Second),
			Window:       config.GetDurationEnv("BREAKER_WINDOW", 60*time.Second),
		},
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = defaultMaxSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = defaultDeliveryTimeout
	}
	return c
}
