package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"SERVER_HOST", "SERVER_PORT", "PORT", "DB_DSN", "MIGRATE_PATH", "JWT_SECRET", "TOKEN_TTL"} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-secret", "s3cr3t"})
	require.NoError(t, err)

	assert.Equal(t, "localhost:5000", cfg.Addr)
	assert.Equal(t, defaultDBDsn, cfg.DBDsn)
	assert.Equal(t, defaultMigratePath, cfg.MigratePath)
	assert.Equal(t, "s3cr3t", cfg.SecretKey)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.Debug)
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("DB_DSN", "postgres://x")

	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-secret", "from-flag", "-port", "1234", "-debug"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "postgres://x", cfg.DBDsn)
	assert.True(t, cfg.Debug)
}

func TestParse_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		clearEnv(t)
		_, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
		assert.ErrorIs(t, err, ErrEmptySecret)
	})

	t.Run("bad port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SERVER_PORT", "http")
		_, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-secret", "k"})
		assert.Error(t, err)
	})

	t.Run("bad ttl", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TOKEN_TTL", "soon")
		_, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-secret", "k"})
		assert.Error(t, err)
	})
}
