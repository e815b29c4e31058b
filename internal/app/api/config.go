package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
)

// Config carries environment-driven settings for the settlement processes.
type Config struct {
	Port        string
	PostgresDSN string

	GatewayBaseURL        string
	GatewayConnectTimeout time.Duration
	GatewayRequestTimeout time.Duration
	GatewayMaxConcurrent  int64
	CallbackBaseURL       string

	TimeoutGrace time.Duration
	AbandonAfter time.Duration

	ReconcileInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
}

// LoadConfig reads environment variables, applies defaults, and validates
// basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                  envDefault("PORT", "8080"),
		PostgresDSN:           strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		GatewayBaseURL:        envDefault("PG_BASE_URL", "http://localhost:8082"),
		CallbackBaseURL:       envDefault("CALLBACK_BASE_URL", "http://localhost:8080"),
		GatewayMaxConcurrent:  16,
		KafkaTopic:            envDefault("KAFKA_ORDER_TOPIC", "order-events"),
		TemporalAddress:       envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:     envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:      isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		GatewayConnectTimeout: time.Second,
		GatewayRequestTimeout: 3 * time.Second,
		TimeoutGrace:          time.Second,
		AbandonAfter:          30 * time.Minute,
		ReconcileInterval:     time.Minute,
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	var err error
	if cfg.GatewayConnectTimeout, err = envDuration("PG_CONNECT_TIMEOUT", cfg.GatewayConnectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.GatewayRequestTimeout, err = envDuration("PG_REQUEST_TIMEOUT", cfg.GatewayRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.TimeoutGrace, err = envDuration("PAYMENT_TIMEOUT_GRACE", cfg.TimeoutGrace); err != nil {
		return Config{}, err
	}
	if cfg.AbandonAfter, err = envDuration("PAYMENT_ABANDON_AFTER", cfg.AbandonAfter); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = envDuration("RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("PG_MAX_CONCURRENT")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("PG_MAX_CONCURRENT must be a positive integer")
		}
		cfg.GatewayMaxConcurrent = n
	}
	return cfg, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
