package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 21.0, cfg.Registration.MaxAU)
	assert.Equal(t, BackendCSV, cfg.Data.Backend)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.False(t, cfg.Redis.Enabled)
	assert.Zero(t, cfg.Notify.Retries)
	assert.Equal(t, 7*24*time.Hour, cfg.Notify.InboxTTL)
	assert.Equal(t, 10*time.Second, cfg.Mail.Timeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MAX_AU", "20")
	t.Setenv("DATA_BACKEND", "Postgres")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("NOTIFY_RETRIES", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Registration.MaxAU)
	assert.Equal(t, BackendPostgres, cfg.Data.Backend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2, cfg.Notify.Retries)
	assert.Contains(t, cfg.Database.DSN(), "dbname=course_registration")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATA_BACKEND", "csv")
	t.Setenv("MAX_AU", "0")
	_, err = Load()
	assert.Error(t, err)
}
