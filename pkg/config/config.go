package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath = "HEALTHCHAT_CONFIG"
	envPrefix     = "HEALTHCHAT"

	BackendKindHTTP     = "http"
	BackendKindOpenAI   = "openai"
	BackendKindOpenCode = "opencode"

	DefaultBaseURL       = "http://127.0.0.1:8000"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	DefaultWelcomeMessage = "Hello! I'm your healthcare assistant. I can help answer questions about symptoms, medications, health conditions, and general wellness. How can I assist you today?"
	DefaultDisclaimer     = "This is a healthcare assistant. For emergencies, contact your doctor or call emergency services."
)

// DefaultQuickReplies are the canned questions offered before the first exchange.
var DefaultQuickReplies = []string{
	"What are the symptoms of a common cold?",
	"How can I maintain a healthy heart?",
	"Tell me about diabetes prevention",
	"What should I do for a headache?",
}

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Chat     ChatConfig     `json:"chat" yaml:"chat"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
}

// BackendConfig selects and configures the assistant backend.
type BackendConfig struct {
	Kind                  string                `json:"kind" yaml:"kind"`
	BaseURL               string                `json:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int                   `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	OpenAI                OpenAIBackendConfig   `json:"openai" yaml:"openai"`
	OpenCode              OpenCodeBackendConfig `json:"opencode" yaml:"opencode"`
}

// OpenAIBackendConfig configures the OpenAI Responses backend.
type OpenAIBackendConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	APIKeyEnv    string `json:"api_key_env" yaml:"api_key_env"`
	Organization string `json:"organization" yaml:"organization"`
	Project      string `json:"project" yaml:"project"`
	Model        string `json:"model" yaml:"model"`
	Instructions string `json:"instructions" yaml:"instructions"`
}

// OpenCodeBackendConfig configures the OpenCode server backend.
type OpenCodeBackendConfig struct {
	BaseURL     string `json:"base_url" yaml:"base_url"`
	Username    string `json:"username" yaml:"username"`
	PasswordEnv string `json:"password_env" yaml:"password_env"`
	Model       string `json:"model" yaml:"model"`
	Agent       string `json:"agent" yaml:"agent"`
}

// ChatConfig holds presentation defaults for the chat client.
type ChatConfig struct {
	UserIDPrefix   string   `json:"user_id_prefix" yaml:"user_id_prefix"`
	WelcomeMessage string   `json:"welcome_message" yaml:"welcome_message"`
	QuickReplies   []string `json:"quick_replies" yaml:"quick_replies"`
	Disclaimer     string   `json:"disclaimer" yaml:"disclaimer"`
	Debug          bool     `json:"debug" yaml:"debug"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
}

// GatewayConfig configures the status server bind settings and probe cadence.
type GatewayConfig struct {
	Host                 string   `json:"host" yaml:"host"`
	Port                 int      `json:"port" yaml:"port"`
	ProbeIntervalSeconds int      `json:"probe_interval_seconds" yaml:"probe_interval_seconds"`
	AllowedOrigins       []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// envOverrides lists the settings that may be replaced from HEALTHCHAT_* variables.
type envOverrides struct {
	BackendURL            string `envconfig:"BACKEND_URL"`
	BackendKind           string `envconfig:"BACKEND_KIND"`
	RequestTimeoutSeconds int    `envconfig:"REQUEST_TIMEOUT_SECONDS"`
	TelegramBotToken      string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom     string `envconfig:"TELEGRAM_ALLOW_FROM"`
	Debug                 string `envconfig:"DEBUG"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig resolves the config file, unmarshals it, and applies defaults and environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}

	return nil
}

// ApplyDefaults fills every unset field with its built-in default.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}

	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendKindHTTP
	}
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBaseURL
	}

	if strings.TrimSpace(c.Chat.UserIDPrefix) == "" {
		c.Chat.UserIDPrefix = "user_"
	}
	if strings.TrimSpace(c.Chat.WelcomeMessage) == "" {
		c.Chat.WelcomeMessage = DefaultWelcomeMessage
	}
	if len(c.Chat.QuickReplies) == 0 {
		c.Chat.QuickReplies = slices.Clone(DefaultQuickReplies)
	}
	if strings.TrimSpace(c.Chat.Disclaimer) == "" {
		c.Chat.Disclaimer = DefaultDisclaimer
	}

	if strings.TrimSpace(c.Gateway.Host) == "" {
		c.Gateway.Host = "127.0.0.1"
	}
	if c.Gateway.Port <= 0 {
		c.Gateway.Port = 18790
	}
	if c.Gateway.ProbeIntervalSeconds <= 0 {
		c.Gateway.ProbeIntervalSeconds = 30
	}
}

// Validate reports configuration that cannot produce a working client.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendKindHTTP, BackendKindOpenAI, BackendKindOpenCode:
	default:
		return fmt.Errorf("unsupported backend kind %q", c.Backend.Kind)
	}
	if c.Backend.RequestTimeoutSeconds < 0 {
		return errors.New("backend.request_timeout_seconds must not be negative")
	}

	return nil
}

// BackendURL returns the address of the configured backend kind.
func (c *Config) BackendURL() string {
	switch c.Backend.Kind {
	case BackendKindOpenAI:
		if url := strings.TrimSpace(c.Backend.OpenAI.BaseURL); url != "" {
			return url
		}
		return DefaultOpenAIBaseURL
	case BackendKindOpenCode:
		return strings.TrimSpace(c.Backend.OpenCode.BaseURL)
	default:
		return c.Backend.BaseURL
	}
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment overrides: %w", err)
	}

	if value := strings.TrimSpace(env.BackendURL); value != "" {
		cfg.Backend.BaseURL = value
	}
	if value := strings.TrimSpace(env.BackendKind); value != "" {
		cfg.Backend.Kind = value
	}
	if env.RequestTimeoutSeconds > 0 {
		cfg.Backend.RequestTimeoutSeconds = env.RequestTimeoutSeconds
	}
	if token := strings.TrimSpace(env.TelegramBotToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if rawAllowFrom := strings.TrimSpace(env.TelegramAllowFrom); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
	if value := strings.TrimSpace(env.Debug); value != "" {
		cfg.Chat.Debug = ParseBool(value)
	}

	return nil
}

// ParseBool accepts the usual truthy spellings and treats everything else as false.
func ParseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is HEALTHCHAT_CONFIG first, then cwd-local fallback paths. An empty
// result means no file was found and built-in defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
