package searchcore

import (
	"os"
	"strconv"
)

// Config is the environment-driven configuration surface: the external
// service credential, the database, and the four rate-limit ceilings.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DatabaseURL   string

	RequestsPerMinute int
	TokensPerMinute   int
	MaxConcurrent     int
	DailyCostLimit    float64
}

// FromEnv reads configuration with documented defaults for the ceilings
// (RPM 3500, TPM 200000, concurrency 100, daily cost $50).
func FromEnv() Config {
	return Config{
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		DatabaseURL:       envStr("DATABASE_URL", "postgres://localhost:5432/raresift"),
		RequestsPerMinute: envInt("RARESIFT_RPM_LIMIT", 3500),
		TokensPerMinute:   envInt("RARESIFT_TPM_LIMIT", 200000),
		MaxConcurrent:     envInt("RARESIFT_CONCURRENCY_LIMIT", 100),
		DailyCostLimit:    envFloat("RARESIFT_DAILY_COST_LIMIT", 50.0),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
