package config

import (
	"os"
	"strconv"
	"strings"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string

	// DatabaseURL selects the postgres stores when set; empty means the
	// in-memory stores (development, tests).
	DatabaseURL string

	// RedisURL enables the cross-instance notification bridge when set.
	RedisURL string
	// RedisChannel is the pub/sub channel the bridge uses.
	RedisChannel string

	// KafkaBrokers enables the lifecycle sink when set (comma-separated).
	KafkaBrokers []string
	// KafkaTopic is the lifecycle topic committed changes are mirrored to.
	KafkaTopic string

	// SubscriberBuffer is the per-subscriber notification channel depth. A
	// subscriber that falls further behind than this starts losing
	// notifications (at-most-once delivery, no replay).
	SubscriberBuffer int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:             getenv("TALENTTRACK_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisChannel:     getenv("REDIS_CHANNEL", "talenttrack:notifications"),
		KafkaTopic:       getenv("KAFKA_TOPIC", "talenttrack.employee.lifecycle.v1"),
		SubscriberBuffer: getint("SUBSCRIBER_BUFFER", 32),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
