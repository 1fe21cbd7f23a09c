package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, databaseDSNEnv, databaseDriverEnv, finnhubAPIKeyEnv,
		telegramTokenEnv, telegramChatIDEnv, logLevelEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.85, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 50, cfg.Dedup.TitleWindow)
	assert.Equal(t, 500, cfg.Dedup.BodySample)
	assert.Equal(t, 7*24*time.Hour, cfg.Usage.Lookback())
	assert.Equal(t, 30, cfg.Usage.MaxArticles)
	assert.Equal(t, time.UTC.String(), cfg.Scheduler.Location().String())
	assert.False(t, cfg.Notifications.Telegram.Enabled())
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "finnhub", cfg.Sources[0].Scanner)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
database:
  driver: postgres
  dsn: postgres://localhost/sentiment
scheduler:
  validationCron: "0 15 7 * * *"
  timezone: Europe/Berlin
usage:
  maxArticles: 12
validation:
  priceTimeout: 3s
securities: [AAPL, MSFT]
sources:
  - name: wire
    scanner: html
    options:
      listUrl: https://example.org/{security}
`), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(finnhubAPIKeyEnv, "secret")
	t.Setenv(databaseDSNEnv, "postgres://override/sentiment")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://override/sentiment", cfg.Database.DSN)
	assert.Equal(t, "0 15 7 * * *", cfg.Scheduler.ValidationCron)
	assert.Equal(t, "0 0 */4 * * *", cfg.Scheduler.IngestCron)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Location().String())
	assert.Equal(t, 12, cfg.Usage.MaxArticles)
	assert.Equal(t, 7, cfg.Usage.LookbackDays)
	assert.Equal(t, 3*time.Second, cfg.Validation.PriceTimeout)
	assert.Equal(t, "secret", cfg.Market.APIKey)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Securities)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "https://example.org/{security}", cfg.Sources[0].Options["listUrl"])
}

func TestLoadFallsBackOnBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	assert.Equal(t, defaultConfig().Database, cfg.Database)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	cfg.Database.Driver = "mysql"
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Dedup.SimilarityThreshold = 1.5
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Sources = []SourceConfig{{Name: "", Scanner: "html"}}
	require.Error(t, cfg.Validate())
}
