package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5556", cfg.Addr())
	assert.Equal(t, "yqv0epjw", cfg.Orpheus.ModelID)
	assert.Equal(t, 45*time.Second, cfg.Orpheus.Timeout)
	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Chat.FastModel)
	assert.Equal(t, "gpt-4", cfg.Chat.EmotionalModel)
	assert.Equal(t, 6*time.Second, cfg.Chat.FastTimeout)
	assert.Equal(t, 15*time.Second, cfg.Chat.EmotionalTimeout)
	assert.Equal(t, "tts-1", cfg.OpenAI.SpeechModel)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Zero(t, cfg.RateLimit.RPS)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_PlainEnvironmentNames(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("BASETEN_API_KEY", "bt-key")
	t.Setenv("MODEL_ID", "abc123")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "bt-key", cfg.Orpheus.APIKey)
	assert.Equal(t, "abc123", cfg.Orpheus.ModelID)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.InDelta(t, 2.5, cfg.RateLimit.RPS, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("ORPHEUS_CHAT_PROVIDER", "anthropic")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Chat.Provider)
}

func TestLoad_FileWithEnvReference(t *testing.T) {
	t.Setenv("MY_BASETEN_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "orpheus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
orpheus:
  api_key: ${MY_BASETEN_KEY}
  endpoint: http://localhost:9999/predict
chat:
  provider: ollama
  ollama_url: http://localhost:11434
voices:
  file: extra-voices.yaml
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Orpheus.APIKey)
	assert.Equal(t, "http://localhost:9999/predict", cfg.Orpheus.Endpoint)
	assert.Equal(t, "ollama", cfg.Chat.Provider)
	assert.Equal(t, "extra-voices.yaml", cfg.Voices.File)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:    ServerConfig{Port: 5556},
		Chat:      ChatConfig{Provider: "openai"},
		RateLimit: RateLimitConfig{RPS: 1, Burst: 5},
	}
	require.NoError(t, valid.Validate())

	badProvider := valid
	badProvider.Chat.Provider = "gemini"
	assert.ErrorContains(t, badProvider.Validate(), "chat.provider")

	badPort := valid
	badPort.Server.Port = 70000
	assert.ErrorContains(t, badPort.Validate(), "server.port")

	badBurst := valid
	badBurst.RateLimit.Burst = 0
	assert.ErrorContains(t, badBurst.Validate(), "rate_limit.burst")
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("SOME_SECRET", "s3cret")

	assert.Equal(t, "s3cret", resolveEnvRef("${SOME_SECRET}"))
	assert.Equal(t, "${UNSET_SECRET_XYZ}", resolveEnvRef("${UNSET_SECRET_XYZ}"))
	assert.Equal(t, "plain", resolveEnvRef("plain"))
}
