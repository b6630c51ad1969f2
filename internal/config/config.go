package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LOTTORACLE_SERVER_ADDR.
const EnvPrefix = "LOTTORACLE"

// Config represents the complete application configuration
type Config struct {
	Lottery  LotteryConfig  `mapstructure:"lottery"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LotteryConfig holds Taiwan Lottery API configuration
type LotteryConfig struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Months            int           `mapstructure:"months"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Concurrency       int           `mapstructure:"concurrency"`
}

// GeminiConfig holds generative model configuration
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Temperature       float32       `mapstructure:"temperature"`
	MaxOutputTokens   int32         `mapstructure:"max_output_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheSize       int           `mapstructure:"cache_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DBPath   string `mapstructure:"db_path"`
	MaxDraws int    `mapstructure:"max_draws"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ScheduleConfig holds the periodic prediction loop configuration
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first if present.
// An empty path skips the config file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Lottery defaults
	v.SetDefault("lottery.api_base_url", "https://api.taiwanlottery.com/TLCAPIWeB/Lottery")
	v.SetDefault("lottery.timeout", "30s")
	v.SetDefault("lottery.months", 6)
	v.SetDefault("lottery.max_retries", 3)
	v.SetDefault("lottery.retry_delay_base", "1s")
	v.SetDefault("lottery.requests_per_second", 2.0)
	v.SetDefault("lottery.concurrency", 2)

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.timeout", "60s")
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.retry_delay_base", "2s")
	v.SetDefault("gemini.requests_per_minute", 10)

	// Server defaults
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cache_ttl", "10m")
	v.SetDefault("server.cache_size", 16)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:8000",
		"http://127.0.0.1:8000",
		"http://frontend:80",
		"http://taiwan-lottery-frontend:80",
	})

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "./data/lottoracle.db")
	v.SetDefault("storage.max_draws", 500)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Schedule defaults
	v.SetDefault("schedule.interval", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Lottery config
	if c.Lottery.APIBaseURL == "" {
		return fmt.Errorf("lottery.api_base_url is required")
	}
	if c.Lottery.Timeout < time.Second {
		return fmt.Errorf("lottery.timeout must be at least 1 second")
	}
	if c.Lottery.Months < 1 || c.Lottery.Months > 24 {
		return fmt.Errorf("lottery.months must be between 1 and 24")
	}
	if c.Lottery.MaxRetries < 1 {
		return fmt.Errorf("lottery.max_retries must be at least 1")
	}
	if c.Lottery.RequestsPerSecond <= 0 {
		return fmt.Errorf("lottery.requests_per_second must be positive")
	}
	if c.Lottery.Concurrency < 1 {
		return fmt.Errorf("lottery.concurrency must be at least 1")
	}

	// Validate Gemini config; an empty API key only disables predictions
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("gemini.temperature must be between 0 and 2")
	}
	if c.Gemini.MaxRetries < 1 {
		return fmt.Errorf("gemini.max_retries must be at least 1")
	}
	if c.Gemini.RequestsPerMinute < 0 {
		return fmt.Errorf("gemini.requests_per_minute must not be negative")
	}

	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.CacheSize < 1 {
		return fmt.Errorf("server.cache_size must be at least 1")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl must not be negative")
	}

	// Validate Storage config
	if c.Storage.Enabled {
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required when storage is enabled")
		}
		if c.Storage.MaxDraws < 10 {
			return fmt.Errorf("storage.max_draws must be at least 10")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Schedule config
	if c.Schedule.Interval < 1*time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1 minute")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// GeminiEnabled reports whether an API key is configured.
func (c *Config) GeminiEnabled() bool {
	return c.Gemini.APIKey != ""
}

// DefaultPath returns the config file to use when none is given on the
// command line: $LOTTORACLE_CONFIG, then configs/config.yaml if it exists.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return "configs/config.yaml"
	}
	return ""
}
