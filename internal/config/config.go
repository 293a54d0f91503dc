package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/docchat/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`

	// Zero leaves requests unbounded so long answers are not cut off
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"0s"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// External RAG service
	RAGConnectorCfg RAGConnectorConfig `envPrefix:"RAG_"`

	// Per-browser chat state
	SessionCfg SessionConfig `envPrefix:"SESSION_"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (only read by cmd/telegram-bot)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string `env:"BOT_TOKEN"`
	UpdateTimeout      int    `env:"UPDATE_TIMEOUT" envDefault:"60"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    int    `env:"SHUTDOWN_TIMEOUT" envDefault:"30"` // seconds
}

// RAGConnectorConfig describes how to reach the hosted RAG service.
// Url and Token are the service address and API key.
type RAGConnectorConfig struct {
	HTTPClientConfig
	CollectionsEndpoint  string               `env:"COLLECTIONS_ENDPOINT" envDefault:"/api/v1/collections"`
	CollectionEndpoint   string               `env:"COLLECTION_ENDPOINT" envDefault:"/api/v1/collections/{collection_id}"`
	ChatSessionsEndpoint string               `env:"CHAT_SESSIONS_ENDPOINT" envDefault:"/api/v1/chats"`
	UploadsEndpoint      string               `env:"UPLOADS_ENDPOINT" envDefault:"/api/v1/uploads"`
	IngestEndpoint       string               `env:"INGEST_ENDPOINT" envDefault:"/api/v1/collections/{collection_id}/ingest"`
	ChatSocketEndpoint   string               `env:"CHAT_SOCKET_ENDPOINT" envDefault:"/ws"`
	LLM                  string               `env:"LLM" envDefault:"gpt-4-1106-preview"`
	LLMArgs              string               `env:"LLM_ARGS"` // JSON object
	QueryTimeout         time.Duration        `env:"QUERY_TIMEOUT" envDefault:"0s"`
	Retry                pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// ParsedLLMArgs decodes LLMArgs. An empty value yields nil.
func (c RAGConnectorConfig) ParsedLLMArgs() (map[string]any, error) {
	if strings.TrimSpace(c.LLMArgs) == "" {
		return nil, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(c.LLMArgs), &args); err != nil {
		return nil, fmt.Errorf("parse RAG_LLM_ARGS: %w", err)
	}
	return args, nil
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"0s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"0s"`
	TLSHandshakeTimeout   time.Duration `env:"TLS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	MaxIdleConnsPerHost   int           `env:"MAX_IDLE_CONNS_PER_HOST" envDefault:"10"`
	InsecureSkipVerify    bool          `env:"INSECURE_SKIP_VERIFY" envDefault:"false"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	TTL                      time.Duration `env:"TTL" envDefault:"24h"`
	CleanupInterval          time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	DeleteCollectionOnExpiry bool          `env:"DELETE_COLLECTION_ON_EXPIRY" envDefault:"false"`
	CookieName               string        `env:"COOKIE_NAME" envDefault:"docchat_session"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize   int64 `env:"MAX_FILE_SIZE" envDefault:"52428800"`   // 50 MiB
	MaxTotalSize  int64 `env:"MAX_TOTAL_SIZE" envDefault:"209715200"` // 200 MiB
	MaxFileCount  int   `env:"MAX_FILE_COUNT" envDefault:"32"`
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"33554432"` // in-memory multipart limit
}

// LoadConfig reads the -env flag, loads the matching .env file and parses
// the environment.
func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	return Load(*envFlag)
}

// Load loads .env.<environment> (if present) and parses the environment.
func Load(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.Environment = environment

	return cfg, nil
}

// Parse builds a Config from the process environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.RAGConnectorCfg.QueryTimeout < 0 {
		errors = append(errors, fmt.Sprintf("RAG_QUERY_TIMEOUT must not be negative, got %s", cfg.RAGConnectorCfg.QueryTimeout))
	}

	if cfg.RequestTimeout < 0 {
		errors = append(errors, fmt.Sprintf("SERVER_REQUEST_TIMEOUT must not be negative, got %s", cfg.RequestTimeout))
	}

	if cfg.RAGConnectorCfg.Retry.Attempts < 1 || cfg.RAGConnectorCfg.Retry.Attempts > 10 {
		errors = append(errors, fmt.Sprintf("RAG_RETRY_ATTEMPTS must be between 1 and 10, got %d", cfg.RAGConnectorCfg.Retry.Attempts))
	}

	if cfg.RAGConnectorCfg.LLM == "" {
		errors = append(errors, "RAG_LLM must not be empty")
	}

	if _, err := cfg.RAGConnectorCfg.ParsedLLMArgs(); err != nil {
		errors = append(errors, err.Error())
	}

	if cfg.SessionCfg.TTL <= 0 {
		errors = append(errors, fmt.Sprintf("SESSION_TTL must be positive, got %s", cfg.SessionCfg.TTL))
	}

	if cfg.SessionCfg.CookieName == "" {
		errors = append(errors, "SESSION_COOKIE_NAME must not be empty")
	}

	if cfg.FileUploadCfg.MaxFileCount < 1 || cfg.FileUploadCfg.MaxFileCount > 256 {
		errors = append(errors, fmt.Sprintf("FILE_UPLOAD_MAX_FILE_COUNT must be between 1 and 256, got %d", cfg.FileUploadCfg.MaxFileCount))
	}

	if cfg.FileUploadCfg.MaxFileSize <= 0 || cfg.FileUploadCfg.MaxFileSize > cfg.FileUploadCfg.MaxTotalSize {
		errors = append(errors, fmt.Sprintf("FILE_UPLOAD_MAX_FILE_SIZE must be between 1 and FILE_UPLOAD_MAX_TOTAL_SIZE(%d), got %d", cfg.FileUploadCfg.MaxTotalSize, cfg.FileUploadCfg.MaxFileSize))
	}

	if cfg.TelegramCfg.RateLimitPerMinute < 1 || cfg.TelegramCfg.RateLimitPerMinute > 60 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_PER_MINUTE must be between 1 and 60, got %d", cfg.TelegramCfg.RateLimitPerMinute))
	}

	if cfg.TelegramCfg.RateLimitBurst < 1 || cfg.TelegramCfg.RateLimitBurst > cfg.TelegramCfg.RateLimitPerMinute {
		errors = append(errors, fmt.Sprintf("TELEGRAM_RATE_LIMIT_BURST must be between 1 and TELEGRAM_RATE_LIMIT_PER_MINUTE, got %d", cfg.TelegramCfg.RateLimitBurst))
	}

	if cfg.TelegramCfg.ShutdownTimeout < 1 || cfg.TelegramCfg.ShutdownTimeout > 300 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_SHUTDOWN_TIMEOUT must be between 1 and 300 seconds, got %d", cfg.TelegramCfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
