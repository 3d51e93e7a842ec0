package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Provider ProviderConfig
	PDF      PDFConfig
	Match    MatchConfig
	Profiles ProfilesConfig
}

// DatabaseConfig holds ledger connection configuration. The DSN scheme picks
// the driver: postgres URLs go through pgx, anything else opens SQLite.
type DatabaseConfig struct {
	DSN string
}

// ProviderConfig holds AI provider configuration for vision extraction.
type ProviderConfig struct {
	APIKey          string
	APIURL          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// PDFConfig holds poppler binary paths and rasterization bounds.
type PDFConfig struct {
	Pdftotext   string
	Pdftoppm    string
	DPI         int
	MaxPages    int // pages beyond the cap are dropped with a truncation note
	MaxWidth    int
	JPEGQuality int
}

// MatchConfig bounds ledger candidate queries.
type MatchConfig struct {
	CandidateLimit int
	CompanyID      int64
}

// ProfilesConfig locates the SourceProfile store.
type ProfilesConfig struct {
	Path string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getEnv("DB_URL", ""),
		},
		Provider: ProviderConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			APIURL:          getEnv("OPENAI_API_URL", "https://api.openai.com/v1/responses"),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", 120*time.Second),
			MaxOutputTokens: getEnvAsInt("OPENAI_MAX_OUTPUT_TOKENS", 16000),
		},
		PDF: PDFConfig{
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:         getEnvAsInt("PDF_RENDER_DPI", 100),
			MaxPages:    getEnvAsInt("PDF_MAX_PAGES", 10),
			MaxWidth:    getEnvAsInt("PDF_MAX_WIDTH", 1500),
			JPEGQuality: getEnvAsInt("PDF_JPEG_QUALITY", 75),
		},
		Match: MatchConfig{
			CandidateLimit: getEnvAsInt("MATCH_CANDIDATE_LIMIT", 10),
			CompanyID:      getEnvAsInt64("COMPANY_ID", 1),
		},
		Profiles: ProfilesConfig{
			Path: getEnv("PROFILES_PATH", "profiles.yaml"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
