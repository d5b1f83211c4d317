package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port               string
	Origin             string
	Environment        string
	LogLevel           string
	JWTSecret          string
	TokenTTLMinutes    int
	AllowedEmailDomain string
	Database           DatabaseConfig
	Redis              RedisConfig
	LLM                LLMConfig
	RateLimit          RateLimitConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	SSLMode  string
	DSN      string
}

// RedisConfig holds the optional chat history cache settings
type RedisConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TTL      time.Duration
}

// LLMConfig selects and configures the answer generator backend
type LLMConfig struct {
	Provider     string
	OllamaHost   string
	OllamaModel  string
	Temperature  float64
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// RateLimitConfig configures the per-IP token bucket
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != "" && r.Port != ""
}

// Addr returns the Redis address in the format host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", ""),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "medichat"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	dsn, err := buildDSN(dbConfig)
	if err != nil {
		return nil, err
	}
	dbConfig.DSN = dsn

	tokenTTL, err := getEnvAsInt("TOKEN_TTL_MINUTES", 0)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := getEnvAsInt("HISTORY_CACHE_TTL_MINUTES", 60)
	if err != nil {
		return nil, err
	}

	llmTimeout, err := getEnvAsInt("LLM_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}

	temperature, err := getEnvAsFloat("OLLAMA_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}

	rps, err := getEnvAsFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, err
	}

	burst, err := getEnvAsInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		Origin:             getEnv("ORIGIN", "http://localhost:3000"),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTLMinutes:    tokenTTL,
		AllowedEmailDomain: strings.ToLower(strings.TrimPrefix(getEnv("ALLOWED_EMAIL_DOMAIN", "gmail.com"), "@")),
		Database:           dbConfig,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      time.Duration(cacheTTL) * time.Minute,
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
			OllamaHost:   getEnv("OLLAMA_HOST", "localhost:11434"),
			OllamaModel:  getEnv("OLLAMA_MODEL", "llama3"),
			Temperature:  temperature,
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      time.Duration(llmTimeout) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required values are present and consistent.
func (c *Config) Validate() error {
	var problems []string

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.AllowedEmailDomain == "" {
		problems = append(problems, "ALLOWED_EMAIL_DOMAIN must not be empty")
	}
	if c.TokenTTLMinutes < 0 {
		problems = append(problems, "TOKEN_TTL_MINUTES must not be negative")
	}
	switch c.LLM.Provider {
	case "ollama", "gemini", "none":
	default:
		problems = append(problems, fmt.Sprintf("unsupported LLM_PROVIDER %q", c.LLM.Provider))
	}
	if c.LLM.Provider == "gemini" && c.LLM.GeminiAPIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// buildDSN builds the Data Source Name for the configured driver.
func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		port := db.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.Username, db.Password, db.Host, port, db.Name), nil
	case "postgres":
		port := db.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			db.Host, port, db.Username, db.Password, db.Name, db.SSLMode), nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
