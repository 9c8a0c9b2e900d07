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

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5*time.Second, cfg.DB.QueryTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "text", cfg.Logger.Format)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_NAME", "rsvp_test")
	t.Setenv("DB_QUERY_TIMEOUT", "250ms")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PUBLIC_BASE_URL", "https://millennialcircuit.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "rsvp_test", cfg.DB.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.DB.QueryTimeout)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "https://millennialcircuit.org", cfg.PublicBaseURL)
}

func TestDSN(t *testing.T) {
	cfg := DBConfig{
		Host: "db", Port: "5433", User: "app", Password: "secret",
		Name: "launchrsvp", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db port=5433 user=app password=secret dbname=launchrsvp sslmode=require",
		cfg.DSN(),
	)
}
