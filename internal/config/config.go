package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported backends
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	PostgreSQL PostgreSQLConfig
	SQLite     SQLiteConfig
	LLM        LLMConfig
	Gemini     GeminiConfig
	OpenAI     OpenAIConfig
	Chat       ChatConfig
	Catalog    CatalogConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	GinMode         string
	AllowedOrigins  string
	AllowedMethods  string
	AllowedHeaders  string
	ShutdownTimeout time.Duration
}

// StoreConfig selects and bounds the places store
type StoreConfig struct {
	Driver      string
	Timeout     time.Duration
	LogSearches bool
	Migrate     bool
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// SQLiteConfig holds the embedded store location
type SQLiteConfig struct {
	Path string
}

// LLMConfig selects the model backend
type LLMConfig struct {
	Provider string
	Timeout  time.Duration
}

// GeminiConfig holds Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Enabled     bool
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey          string
	APIBase         string
	ChatModel       string
	ChatTemperature float64
	ChatTopP        float64
	ChatMaxTokens   int
	ChatExtraBody   string // JSON object merged into every request, e.g. {"chat_template_kwargs":{"thinking":false}}
	Enabled         bool
}

// ChatConfig bounds the tool loop and the chat endpoints
type ChatConfig struct {
	MaxToolRounds    int
	ToolConcurrency  int
	RateLimit        int // requests per minute per session, 0 disables
	RateBurst        int
	SystemPromptFile string
	LeakPatterns     []string // extra leak guard patterns on top of the defaults
}

// CatalogConfig points at an optional alias/theme table override
type CatalogConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:         getEnv("GIN_MODE", "release"),
			AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods:  getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:  getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Request-ID"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			Timeout:     getEnvAsDuration("STORE_TIMEOUT", 10*time.Second),
			LogSearches: getEnvAsBool("STORE_LOG_SEARCHES", true),
			Migrate:     getEnvAsBool("STORE_MIGRATE", true),
		},
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "rande"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "places.db"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
			Timeout:  getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: getEnvAsFloat("GEMINI_TEMPERATURE", 0.7),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			APIBase:         strings.TrimRight(getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
			ChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature: getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.7),
			ChatTopP:        getEnvAsFloat("OPENAI_CHAT_TOP_P", 0),
			ChatMaxTokens:   getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 2048),
			ChatExtraBody:   getEnv("OPENAI_CHAT_EXTRA_BODY", ""),
		},
		Chat: ChatConfig{
			MaxToolRounds:    getEnvAsInt("CHAT_MAX_TOOL_ROUNDS", 5),
			ToolConcurrency:  getEnvAsInt("CHAT_TOOL_CONCURRENCY", 4),
			RateLimit:        getEnvAsInt("CHAT_RATE_LIMIT", 0),
			RateBurst:        getEnvAsInt("CHAT_RATE_BURST", 5),
			SystemPromptFile: getEnv("CHAT_SYSTEM_PROMPT_FILE", ""),
			LeakPatterns:     getEnvAsList("CHAT_LEAK_PATTERNS"),
		},
		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
	cfg.Gemini.Enabled = cfg.Gemini.APIKey != ""
	cfg.OpenAI.Enabled = cfg.OpenAI.APIKey != ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", c.Store.Driver, DriverPostgres, DriverSQLite)
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want %s or %s)", c.LLM.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.Chat.MaxToolRounds <= 0 {
		return fmt.Errorf("CHAT_MAX_TOOL_ROUNDS must be positive, got %d", c.Chat.MaxToolRounds)
	}
	if c.Chat.ToolConcurrency <= 0 {
		return fmt.Errorf("CHAT_TOOL_CONCURRENCY must be positive, got %d", c.Chat.ToolConcurrency)
	}
	if c.Chat.RateLimit < 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must not be negative, got %d", c.Chat.RateLimit)
	}
	if c.Store.Timeout <= 0 || c.LLM.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT and LLM_TIMEOUT must be positive")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
