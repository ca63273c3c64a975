package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pricesentry/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRICESENTRY_DATA_DIR", t.TempDir())
	t.Setenv("PRICESENTRY_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, 1100*time.Millisecond, cfg.Providers.Finnhub.MinInterval)
	assert.Equal(t, 3, cfg.Providers.Concurrency)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricesentry.yaml")
	yamlDoc := `
providers:
  yahoo:
    min_interval: 7s
  concurrency: 5
fetch:
  chunk_size: 8
cache:
  ttl_intraday: 45m
mail:
  recipient: desk@example.com
  bcc: [a@example.com]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("PRICESENTRY_DATA_DIR", dir)
	t.Setenv("PRICESENTRY_CONFIG", path)
	t.Setenv("PROVIDER_CONCURRENCY", "4")
	t.Setenv("ALERT_BCC", "b@example.com, c@example.com")
	t.Setenv("BATCH_CHUNK_DELAY", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Providers.Yahoo.MinInterval)
	assert.Equal(t, 4, cfg.Providers.Concurrency, "env overrides file")
	assert.Equal(t, 8, cfg.Fetch.ChunkSize)
	assert.Equal(t, 45*time.Minute, cfg.Cache.TTLIntraday)
	assert.Equal(t, 3*time.Second, cfg.Fetch.ChunkDelay)
	assert.Equal(t, "desk@example.com", cfg.Mail.Recipient)
	assert.Equal(t, []string{"b@example.com", "c@example.com"}, cfg.Mail.Bcc)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Providers.Polygon.MinInterval = 0
	cfg.Cache.Backend = "memcached"
	cfg.Mail.Recipient = "not-an-address"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polygon min interval")
	assert.Contains(t, err.Error(), "memcached")
	assert.Contains(t, err.Error(), "not-an-address")
}

func TestCurrentSession(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	// 14:00 UTC in January is 09:00 in New York
	assert.Equal(t, domain.SessionAM, cfg.CurrentSession(time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)))
	// 18:00 UTC in January is 13:00 in New York
	assert.Equal(t, domain.SessionPM, cfg.CurrentSession(time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)))
}

func TestMailEnabled(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.MailEnabled())

	cfg.Mail.Recipient = "desk@example.com"
	cfg.Mail.SMTPHost = "smtp.example.com"
	assert.True(t, cfg.MailEnabled())

	cfg.Mail.Transport = "api"
	assert.False(t, cfg.MailEnabled())
}

func TestR2Enabled(t *testing.T) {
	assert.False(t, R2Config{Bucket: "b"}.Enabled())
	assert.True(t, R2Config{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s", Bucket: "b"}.Enabled())
}
