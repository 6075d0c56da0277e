package config

import (
	"os"
	"strconv"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int

	DBPath         string
	MigrationsPath string
	BlueprintRoot  string
	FetchTimeout   int
	// DocumentAspectRatio используется для документов, размер страницы
	// которых не читается, и до показа первой страницы.
	DocumentAspectRatio float64
	SessionTTLMinutes   int
	CORSEnabled         bool
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3000"),
		Environment:  getEnv("ENV", "development"),
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),

		DBPath:              getEnv("ANNOTATOR_DB_PATH", "data/db/annotator.db"),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", ""),
		BlueprintRoot:       getEnv("BLUEPRINT_ROOT", "data/blueprints"),
		FetchTimeout:        getEnvAsInt("FETCH_TIMEOUT", 15),
		DocumentAspectRatio: getEnvAsFloat("DOCUMENT_ASPECT_RATIO", 1.4142),
		SessionTTLMinutes:   getEnvAsInt("SESSION_TTL", 60),
		CORSEnabled:         getEnvAsBool("CORS_ENABLED", false),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}
