package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	// DatabaseURL enables the Postgres-backed stores; empty keeps the
	// in-memory stores (development and tests).
	DatabaseURL string

	Redis RedisConfig

	// CandidateIDPrefix is the PFX segment of issued candidate codes.
	CandidateIDPrefix string

	// AuditBuffer > 0 switches the audit publisher to async emission.
	AuditBuffer int
}

// RedisConfig configures the read-model invalidation client.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	cfg := Server{
		Addr:              envOr("PASSAGE_ADDR", ":8080"),
		AdminToken:        os.Getenv("PASSAGE_ADMIN_TOKEN"),
		JWTSigningKey:     envOr("PASSAGE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:       os.Getenv("PASSAGE_DATABASE_URL"),
		CandidateIDPrefix: envOr("PASSAGE_CANDIDATE_ID_PREFIX", "PMC"),
		AuditBuffer:       envInt("PASSAGE_AUDIT_BUFFER", 0),
		Redis: RedisConfig{
			URL:          os.Getenv("PASSAGE_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
