package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the daemon reads from the environment so main
// stays lean. Zero-value backends (empty URLs) fall back to in-memory
// stores, which keeps local development free of infrastructure.
type Config struct {
	Addr string

	// ResponseWindow is the challenge completion deadline. It doubles as
	// the verification-cache freshness window unless CacheWindow overrides
	// it.
	ResponseWindow time.Duration
	CacheWindow    time.Duration
	// ResolverWindow bounds how far back the connect-log query looks.
	ResolverWindow time.Duration

	RedisURL    string
	DatabaseURL string

	RegistryURL string
	LogQueryURL string

	KafkaBrokers []string
	KafkaGroup   string
	TopicPrefix  string

	RevokeParallelism int
}

// FromEnv builds the daemon config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("VIGIL_ADDR", ":8080"),
		ResponseWindow:    envSeconds("VIGIL_RESPONSE_WINDOW", 3600),
		ResolverWindow:    envSeconds("VIGIL_RESOLVER_WINDOW", 300),
		RedisURL:          os.Getenv("VIGIL_REDIS_URL"),
		DatabaseURL:       os.Getenv("VIGIL_DATABASE_URL"),
		RegistryURL:       envOr("VIGIL_REGISTRY_URL", "http://localhost:9090"),
		LogQueryURL:       envOr("VIGIL_LOG_QUERY_URL", "http://localhost:9091"),
		KafkaGroup:        envOr("VIGIL_KAFKA_GROUP", "vigil"),
		TopicPrefix:       envOr("VIGIL_TOPIC_PREFIX", "device"),
		RevokeParallelism: envInt("VIGIL_REVOKE_PARALLELISM", 4),
	}

	cfg.CacheWindow = envSeconds("VIGIL_CACHE_WINDOW", int(cfg.ResponseWindow/time.Second))

	if brokers := os.Getenv("VIGIL_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
