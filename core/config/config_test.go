package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  run_mode: "polling"
api:
  gateway_url: "http://gateway:18056"
  admin_url: "http://admin:18057"
  admin_token: "secret"
database:
  host: "db"
  port: "5432"
  user: "vexabot"
  password: "pw"
  name: "vexabot"
  sslmode: "disable"
  max_connections: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReadsDatabaseSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "vexabot", cfg.Database.Name)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
}

func TestLoadEnvOverridesDatabase(t *testing.T) {
	t.Setenv("DB_HOST", "db-prod")
	t.Setenv("DB_PASSWORD", "prod-pw")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "db-prod", cfg.Database.Host)
	assert.Equal(t, "prod-pw", cfg.Database.Password)
	assert.Equal(t, "vexabot", cfg.Database.User)
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	// "polling" is an accepted alias for longpoll.
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "Vexa Assistant", cfg.API.DefaultBotName)
	assert.Equal(t, "en", cfg.API.DefaultLanguage)
}

func TestNormalizeRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing gateway url", func(c *Config) { c.API.GatewayURL = "" }},
		{"missing admin token", func(c *Config) { c.API.AdminToken = "" }},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = RunModeWebhook }},
		{"bad rate limit exclusion", func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			require.NoError(t, err)

			tc.mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
}
