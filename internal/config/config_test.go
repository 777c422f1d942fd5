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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Type)
	assert.Equal(t, "agent.db", cfg.DB.DSN)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Relay.Host)
	assert.Equal(t, 10*time.Second, cfg.Relay.Timeout())
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.GitHub.Interval())
	assert.Empty(t, cfg.Relay.URL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9000", "webhook_token": "file-token"},
		"relay": {"url": "https://file.example.com/hook"},
		"telegram": {"alert_channel_id": -100111}
	}`), 0o644))

	t.Setenv("VPS_WEBHOOK_URL", "https://vps.example.com/api/uptime-alerts")
	t.Setenv("AGENT_DB", "sqlite:///./data/agent.db")
	t.Setenv("POLLING_INTERVAL", "60")
	t.Setenv("HOMELAB_TELEGRAM_ALERT_CHANNEL_ID", "-100222")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "file-token", cfg.Server.WebhookToken)
	assert.Equal(t, "https://vps.example.com/api/uptime-alerts", cfg.Relay.URL)
	assert.Equal(t, "./data/agent.db", cfg.DB.DSN)
	assert.Equal(t, time.Minute, cfg.GitHub.Interval())
	assert.Equal(t, int64(-100222), cfg.Telegram.AlertChannelID)
	assert.Equal(t, "gsk-test", cfg.LLM.GroqAPIKey)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"db type", map[string]string{"DB_TYPE": "mysql"}, "invalid db type"},
		{"port", map[string]string{"HOMELAB_SERVER_PORT": "http"}, "invalid server port"},
		{"polling interval", map[string]string{"POLLING_INTERVAL": "0"}, "invalid polling interval"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
