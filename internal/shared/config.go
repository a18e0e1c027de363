package shared

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	QdrantAddr string
	Collection string

	OllamaHost string
	EmbedModel string
	EmbedDim   int

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	APIBaseURL  string
	Workers     int
	IngestBatch int
	ClientRPS   int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	return Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8000"),
		MetricsAddr: env("METRICS_ADDR", ""),
		QdrantAddr:  env("QDRANT_ADDR", "localhost:6334"),
		Collection:  env("QDRANT_COLLECTION", "reviews"),
		OllamaHost:  env("OLLAMA_HOST", ""),
		EmbedModel:  env("EMBED_MODEL", ""),
		EmbedDim:    atoi("EMBED_DIM", 0),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		APIBaseURL:  env("API_BASE_URL", "http://localhost:8000"),
		Workers:     atoi("INGEST_WORKERS", 4),
		IngestBatch: atoi("INGEST_BATCH", 64),
		ClientRPS:   atoi("CLIENT_RPS", 10),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
