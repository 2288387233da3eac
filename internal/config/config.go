package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the service reads at startup. Nothing else in
// the codebase touches the environment; components receive the values they
// need through their constructors.
type Config struct {
	Port     string
	GinMode  string
	MongoURI string
	MongoDB  string

	JWTSecret string

	// Remote scoring service.
	ScoringURL     string
	ScoringTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration

	// Accepted patient age range for prediction requests.
	AgeMin int
	AgeMax int
}

func Load() (*Config, error) {
	godotenv.Load() // ignore error — plain env vars are fine without a .env

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getEnv("MONGO_DB", "triage"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ScoringURL:     getEnv("AI_SERVICE_URL", "http://localhost:5001"),
		ScoringTimeout: getEnvDuration("AI_TIMEOUT", 30*time.Second),
		MaxAttempts:    getEnvInt("AI_MAX_ATTEMPTS", 3),
		RetryDelay:     getEnvDuration("AI_RETRY_DELAY", 2*time.Second),
		RateLimitDelay: getEnvDuration("AI_RATE_LIMIT_DELAY", 3*time.Second),
		AgeMin:         getEnvInt("PATIENT_AGE_MIN", 0),
		AgeMax:         getEnvInt("PATIENT_AGE_MAX", 120),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.AgeMin < 0 || cfg.AgeMax <= cfg.AgeMin {
		return nil, fmt.Errorf("invalid patient age range [%d, %d]", cfg.AgeMin, cfg.AgeMax)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

// getEnvDuration accepts Go duration strings ("5s", "300ms") and, for
// compatibility with the original deployment scripts, bare integers meaning
// seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
