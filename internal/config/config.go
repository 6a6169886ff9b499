package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string // optional; defaults survive restarts when set
	TablePrefix string
	CORSOrigins string
	// Completion server configuration
	LLMBaseURL               string // full chat completion endpoint URL
	DefaultModel             string
	CompletionTimeoutSeconds int
	// Logging
	LogDir string // optional; when set, logs tee into timestamped files
	Debug  bool   // forces debug-level logging outside dev
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		// Completion server configuration; local models stay unavailable
		// until LLM_BASE_URL is set, the lorem provider always works
		LLMBaseURL:               getEnv("LLM_BASE_URL", ""),
		DefaultModel:             getEnv("DEFAULT_MODEL", "llama-3.1-8b-instruct"),
		CompletionTimeoutSeconds: getEnvInt("COMPLETION_TIMEOUT_SECONDS", 300),
		LogDir:                   getEnv("LOG_DIR", ""),
		// Debug defaults to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
