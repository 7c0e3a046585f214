package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// persistence
	StoreBackend string `yaml:"store_backend" toml:"store_backend"` // sql | file
	DBDriver     string `yaml:"db_driver" toml:"db_driver"`         // sqlite | mysql
	DBDSN        string `yaml:"db_dsn" toml:"db_dsn"`
	ChatDataDir  string `yaml:"chat_data_dir" toml:"chat_data_dir"`

	// browser session pointer
	SessionBackend string        `yaml:"session_backend" toml:"session_backend"` // memory | redis
	SessionSecret  string        `yaml:"session_secret" toml:"session_secret"`
	SessionTTL     time.Duration `yaml:"session_ttl" toml:"session_ttl"`
	RedisAddr      string        `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password" toml:"redis_password"`
	RedisDB        int           `yaml:"redis_db" toml:"redis_db"`

	ChatContextWindowSize int  `yaml:"chat_context_window_size" toml:"chat_context_window_size"`
	ChatStreamDefault     bool `yaml:"chat_stream_default" toml:"chat_stream_default"`

	// AI provider
	AIProvider        string `yaml:"ai_provider" toml:"ai_provider"`
	OllamaBaseURL     string `yaml:"ollama_base_url" toml:"ollama_base_url"`
	OllamaModel       string `yaml:"ollama_model" toml:"ollama_model"`
	OpenRouterBaseURL string `yaml:"openrouter_base_url" toml:"openrouter_base_url"`
	OpenRouterAPIKey  string `yaml:"openrouter_api_key" toml:"openrouter_api_key"`
	OpenRouterModel   string `yaml:"openrouter_model" toml:"openrouter_model"`
	OpenRouterSiteURL string `yaml:"openrouter_site_url" toml:"openrouter_site_url"`
	OpenRouterAppName string `yaml:"openrouter_app_name" toml:"openrouter_app_name"`
	GeminiAPIKey      string `yaml:"gemini_api_key" toml:"gemini_api_key"`
	GeminiModel       string `yaml:"gemini_model" toml:"gemini_model"`

	// rabbitMQ chat events; empty URL disables publishing
	RabbitURL   string `yaml:"rabbit_url" toml:"rabbit_url"`
	RabbitQueue string `yaml:"rabbit_queue" toml:"rabbit_queue"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"` // json | console
}

func defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		StoreBackend:      "sql",
		DBDriver:          "sqlite",
		DBDSN:             "chatrelay.db",
		ChatDataDir:       "chats",
		SessionBackend:    "memory",
		SessionSecret:     "dev-secret-change-me",
		SessionTTL:        7 * 24 * time.Hour,
		RedisAddr:         "127.0.0.1:6379",
		AIProvider:        "ollama",
		OllamaBaseURL:     "http://localhost:11434",
		OllamaModel:       "llama3:latest",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		OpenRouterModel:   "openrouter/auto",
		GeminiModel:       "gemini-2.5-flash",
		ChatStreamDefault: true,
		RabbitQueue:       "chat_events",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load builds the config from defaults, then CONFIG_FILE if set, then the
// environment. Environment variables always win.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file path; an empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported file type %q", path)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")

	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.DBDSN, "DB_DSN")
	setString(&cfg.ChatDataDir, "CHAT_DATA_DIR")

	setString(&cfg.SessionBackend, "SESSION_BACKEND")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setDuration(&cfg.SessionTTL, "SESSION_TTL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")

	setInt(&cfg.ChatContextWindowSize, "CHAT_CONTEXT_WINDOW_SIZE")
	setBool(&cfg.ChatStreamDefault, "CHAT_STREAM_DEFAULT")

	setString(&cfg.AIProvider, "AI_PROVIDER")
	setString(&cfg.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.OllamaModel, "OLLAMA_MODEL")
	setString(&cfg.OpenRouterBaseURL, "OPENROUTER_BASE_URL")
	setString(&cfg.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setString(&cfg.OpenRouterModel, "OPENROUTER_MODEL")
	setString(&cfg.OpenRouterSiteURL, "OPENROUTER_SITE_URL")
	setString(&cfg.OpenRouterAppName, "OPENROUTER_APP_NAME")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")

	setString(&cfg.RabbitURL, "RABBIT_URL")
	setString(&cfg.RabbitQueue, "RABBIT_QUEUE")

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case "sql", "file":
	default:
		return fmt.Errorf("config: unsupported STORE_BACKEND=%q", c.StoreBackend)
	}
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER=%q", c.DBDriver)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported SESSION_BACKEND=%q", c.SessionBackend)
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("config: SESSION_SECRET must not be empty")
	}
	return nil
}

// DefaultModel is the configured model for a provider name.
func (c Config) DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case "ollama":
		return c.OllamaModel
	case "openrouter":
		return c.OpenRouterModel
	case "gemini":
		return c.GeminiModel
	}
	return ""
}
