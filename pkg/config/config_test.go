package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "backend": {"kind": "http", "base_url": "http://127.0.0.1:9000/", "request_timeout_seconds": 12},
	  "chat": {"quick_replies": ["Is ibuprofen safe?"]},
	  "channels": {"telegram": {}},
	  "gateway": {"host": "0.0.0.0", "port": 18800},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HEALTHCHAT_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:9000", cfg.Backend.BaseURL)
	require.Equal(t, 12, cfg.Backend.RequestTimeoutSeconds)
	require.Equal(t, []string{"Is ibuprofen safe?"}, cfg.Chat.QuickReplies)
	require.Equal(t, DefaultWelcomeMessage, cfg.Chat.WelcomeMessage)
	require.Equal(t, 18800, cfg.Gateway.Port)
	require.Equal(t, 30, cfg.Gateway.ProbeIntervalSeconds)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Logging.AddSource)
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  kind: openai
  openai:
    model: gpt-5.2
chat:
  welcome_message: Hi there
  debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HEALTHCHAT_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, BackendKindOpenAI, cfg.Backend.Kind)
	require.Equal(t, "gpt-5.2", cfg.Backend.OpenAI.Model)
	require.Equal(t, "Hi there", cfg.Chat.WelcomeMessage)
	require.True(t, cfg.Chat.Debug)
	require.Equal(t, DefaultQuickReplies, cfg.Chat.QuickReplies)
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("HEALTHCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HEALTHCHAT_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, BackendKindHTTP, cfg.Backend.Kind)
	require.Equal(t, DefaultBaseURL, cfg.Backend.BaseURL)
	require.Len(t, cfg.Chat.QuickReplies, 4)
	require.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	require.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEALTHCHAT_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("HEALTHCHAT_BACKEND_URL", "https://assistant.example.test")
	t.Setenv("HEALTHCHAT_REQUEST_TIMEOUT_SECONDS", "45")
	t.Setenv("HEALTHCHAT_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("HEALTHCHAT_TELEGRAM_ALLOW_FROM", " 1, ,2 ")
	t.Setenv("HEALTHCHAT_DEBUG", "yes")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://assistant.example.test", cfg.Backend.BaseURL)
	require.Equal(t, 45, cfg.Backend.RequestTimeoutSeconds)
	require.Equal(t, "123:abc", cfg.Channels.Telegram.Token)
	require.Equal(t, []string{"1", "2"}, cfg.Channels.Telegram.AllowFrom)
	require.True(t, cfg.Chat.Debug)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend.Kind = "carrier-pigeon"

	require.Error(t, cfg.Validate())
}

func TestBackendURLFollowsKind(t *testing.T) {
	cfg := Default()
	require.Equal(t, DefaultBaseURL, cfg.BackendURL())

	cfg.Backend.Kind = BackendKindOpenCode
	cfg.Backend.OpenCode.BaseURL = "http://127.0.0.1:4096"
	require.Equal(t, "http://127.0.0.1:4096", cfg.BackendURL())

	cfg.Backend.Kind = BackendKindOpenAI
	require.Equal(t, DefaultOpenAIBaseURL, cfg.BackendURL())
	cfg.Backend.OpenAI.BaseURL = "https://proxy.example.test/v1"
	require.Equal(t, "https://proxy.example.test/v1", cfg.BackendURL())
}
