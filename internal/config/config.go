// Package config loads the server configuration from defaults, an optional
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Orpheus   OrpheusConfig   `mapstructure:"orpheus"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Voices    VoicesConfig    `mapstructure:"voices"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// OrpheusConfig points at the Baseten deployment serving the primary voice
// model. Endpoint, when set, overrides the URL derived from ModelID.
type OrpheusConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	ModelID  string        `mapstructure:"model_id"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig is shared by the chat provider and the fallback speech
// backend.
type OpenAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	SpeechModel   string        `mapstructure:"speech_model"`
	SpeechTimeout time.Duration `mapstructure:"speech_timeout"`
}

type ChatConfig struct {
	Provider         string        `mapstructure:"provider"` // openai, anthropic or ollama
	FastModel        string        `mapstructure:"fast_model"`
	EmotionalModel   string        `mapstructure:"emotional_model"`
	FastTimeout      time.Duration `mapstructure:"fast_timeout"`
	EmotionalTimeout time.Duration `mapstructure:"emotional_timeout"`
	AnthropicKey     string        `mapstructure:"anthropic_api_key"`
	AnthropicBaseURL string        `mapstructure:"anthropic_base_url"`
	OllamaURL        string        `mapstructure:"ollama_url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig enables the Redis-backed audio cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// RateLimitConfig configures the per-client token bucket. A zero RPS
// disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// VoicesConfig names an optional YAML file merged over the builtin catalog.
type VoicesConfig struct {
	File string `mapstructure:"file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// envBindings maps config keys to the un-prefixed variables the service
// has always read.
var envBindings = map[string]string{
	"server.host":             "HOST",
	"server.port":             "PORT",
	"orpheus.api_key":         "BASETEN_API_KEY",
	"orpheus.model_id":        "MODEL_ID",
	"orpheus.endpoint":        "ORPHEUS_ENDPOINT",
	"openai.api_key":          "OPENAI_API_KEY",
	"openai.base_url":         "OPENAI_BASE_URL",
	"chat.provider":           "CHAT_PROVIDER",
	"chat.fast_model":         "CHAT_FAST_MODEL",
	"chat.emotional_model":    "CHAT_EMOTIONAL_MODEL",
	"chat.anthropic_api_key":  "ANTHROPIC_API_KEY",
	"chat.anthropic_base_url": "ANTHROPIC_BASE_URL",
	"chat.ollama_url":         "OLLAMA_URL",
	"redis.addr":              "REDIS_ADDR",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"cache.enabled":           "CACHE_ENABLED",
	"cache.ttl":               "CACHE_TTL",
	"rate_limit.rps":          "RATE_LIMIT_RPS",
	"rate_limit.burst":        "RATE_LIMIT_BURST",
	"voices.file":             "VOICES_FILE",
	"logging.level":           "LOG_LEVEL",
	"logging.format":          "LOG_FORMAT",
}

// Load reads the configuration. If configFile is non-empty it is used
// directly; otherwise ./orpheus.yaml, ./configs/orpheus.yaml and
// /etc/orpheus/orpheus.yaml are searched. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5556)
	v.SetDefault("orpheus.model_id", "yqv0epjw")
	v.SetDefault("orpheus.timeout", 45*time.Second)
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.speech_timeout", 60*time.Second)
	v.SetDefault("chat.provider", "openai")
	v.SetDefault("chat.fast_model", "gpt-3.5-turbo")
	v.SetDefault("chat.emotional_model", "gpt-4")
	v.SetDefault("chat.fast_timeout", 6*time.Second)
	v.SetDefault("chat.emotional_timeout", 15*time.Second)
	v.SetDefault("chat.ollama_url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.prefix", "orpheus:")
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("orpheus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/orpheus")
	}

	// ORPHEUS_SERVER_PORT, ORPHEUS_CHAT_PROVIDER, ... plus the plain names above.
	v.SetEnvPrefix("ORPHEUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Orpheus.APIKey = resolveEnvRef(cfg.Orpheus.APIKey)
	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)
	cfg.Chat.AnthropicKey = resolveEnvRef(cfg.Chat.AnthropicKey)
	cfg.Redis.Password = resolveEnvRef(cfg.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Chat.Provider {
	case "openai", "anthropic", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("chat.provider %q must be openai, anthropic or ollama", c.Chat.Provider))
	}
	if c.RateLimit.RPS < 0 {
		problems = append(problems, "rate_limit.rps must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		problems = append(problems, "rate_limit.burst must be positive when rate limiting is on")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// resolveEnvRef replaces a "${VAR_NAME}" value with the variable's value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		if envVal := os.Getenv(val[2 : len(val)-1]); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
