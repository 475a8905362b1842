package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "data/db/nutritionist.db", cfg.Database.Path)
		assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, "text-embedding-004", cfg.LLM.EmbeddingModel)
		assert.ElementsMatch(t, []string{"custom_meal_plans.ts_ms", "meal_suggestions.ts_ms"}, cfg.Store.Indexes)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("LegacyEnvNames", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("GROQ_API_KEY", "groq_key")
		t.Setenv("PORT", "9090")
		t.Setenv("TELEGRAM_BOT_TOKEN", "token")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "gemini_key", cfg.LLM.GeminiAPIKey)
		assert.Equal(t, "groq_key", cfg.LLM.GroqAPIKey)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "token", cfg.Telegram.BotToken)
		assert.True(t, cfg.LLM.Available())
	})

	t.Run("PrefixedEnv", func(t *testing.T) {
		t.Setenv("NUTRITIONIST_LLM_TIMEOUT", "5s")
		t.Setenv("NUTRITIONIST_LOGGING_LEVEL", "debug")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  port: 7000\ndata:\n  catalog_csv: /srv/catalog.csv\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "/srv/catalog.csv", cfg.Data.CatalogCSV)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidateBot(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateBot()
	require.Error(t, err)
	assert.Equal(t, "TELEGRAM_BOT_TOKEN environment variable not set", err.Error())

	cfg.Telegram.BotToken = "token"
	err = cfg.ValidateBot()
	require.Error(t, err)
	assert.Equal(t, "TELEGRAM_WEBHOOK_URL environment variable not set", err.Error())

	cfg.Telegram.WebhookURL = "https://example.test/webhook"
	assert.NoError(t, cfg.ValidateBot())
}
