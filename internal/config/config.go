package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DB       DBConfig       `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Relay    RelayConfig    `mapstructure:"relay"`
	LLM      LLMConfig      `mapstructure:"llm"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type DBConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	WebhookToken string `mapstructure:"webhook_token"`
}

type RelayConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	TimeoutSeconds int64  `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	GroqAPIKey     string `mapstructure:"groq_api_key"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int64  `mapstructure:"timeout_seconds"`
}

type GitHubConfig struct {
	Token           string `mapstructure:"token"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	AgentURL        string `mapstructure:"agent_url"`
	PollingInterval int64  `mapstructure:"polling_interval"` // in seconds
	TargetsFile     string `mapstructure:"targets_file"`
	StateFile       string `mapstructure:"state_file"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	AlertChannelID int64  `mapstructure:"alert_channel_id"`
}

func (c RelayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c GitHubConfig) Interval() time.Duration {
	return time.Duration(c.PollingInterval) * time.Second
}

var defaults = map[string]any{
	"db.type":                 "sqlite",
	"db.dsn":                  "agent.db",
	"server.port":             "8000",
	"relay.host":              "localhost",
	"relay.timeout_seconds":   10,
	"llm.timeout_seconds":     30,
	"github.polling_interval": 300,
	"github.targets_file":     "github-config/polling.conf",
	"github.state_file":       "data/github_last_check.json",
}

// Переменные окружения без префикса HOMELAB_, под которыми настройки
// задавались исторически. HOMELAB_<SECTION>_<KEY> работает для всех ключей.
var legacyEnv = map[string]string{
	"db.type":                 "DB_TYPE",
	"db.dsn":                  "AGENT_DB",
	"relay.url":               "VPS_WEBHOOK_URL",
	"relay.host":              "HOMELAB_HOST",
	"llm.groq_api_key":        "GROQ_API_KEY",
	"llm.openai_api_key":      "OPENAI_API_KEY",
	"llm.model":               "LLM_MODEL",
	"llm.base_url":            "LLM_BASE_URL",
	"github.token":            "GITHUB_TOKEN",
	"github.webhook_secret":   "GITHUB_WEBHOOK_SECRET",
	"github.agent_url":        "AGENT_URL",
	"github.polling_interval": "POLLING_INTERVAL",
	"telegram.bot_token":      "TELEGRAM_BOT_TOKEN",
}

var keys = []string{
	"db.type", "db.dsn",
	"server.port", "server.webhook_token",
	"relay.url", "relay.host", "relay.timeout_seconds",
	"llm.groq_api_key", "llm.openai_api_key", "llm.model", "llm.base_url", "llm.timeout_seconds",
	"github.token", "github.webhook_secret", "github.agent_url", "github.polling_interval",
	"github.targets_file", "github.state_file",
	"telegram.bot_token", "telegram.alert_channel_id",
}

// Load собирает конфигурацию: значения по умолчанию, затем JSON-файл path
// (необязательный), затем .env и переменные окружения.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	for _, key := range keys {
		envs := []string{key, "HOMELAB_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			envs = append(envs, legacy)
		}
		if err := v.BindEnv(envs...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DB.DSN = strings.TrimPrefix(cfg.DB.DSN, "sqlite:///")

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DB.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid db type %q: expected sqlite or postgres", cfg.DB.Type)
	}
	if cfg.DB.DSN == "" {
		return errors.New("db dsn is required")
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", cfg.Server.Port)
	}

	if cfg.Relay.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid relay timeout: %d", cfg.Relay.TimeoutSeconds)
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid llm timeout: %d", cfg.LLM.TimeoutSeconds)
	}
	if cfg.GitHub.PollingInterval <= 0 {
		return fmt.Errorf("invalid polling interval: %d", cfg.GitHub.PollingInterval)
	}
	return nil
}
