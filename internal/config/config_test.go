package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"BIND_ADDR", "MAX_JSON_PAYLOAD_SIZE", "AUTH_USERNAME", "AUTH_PASSWORD", "AUTH_TOKEN",
	"DB_DRIVER", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONNECT_TIMEOUT",
	"HEALTH_CHECK_SCHEDULE", "TARGET_TABLE", "TIME_COLUMN", "WRITE_TIMEOUT", "DISABLE_TRY_PARSE",
	"MAPPING_FILE", "NATS_URL", "NATS_SUBJECT", "NATS_QUEUE",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TARGET_TABLE", "readings")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.BindAddr)
	assert.Equal(t, int64(65536), cfg.MaxJSONPayloadSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=postgres sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "@every 30s", cfg.Database.HealthCheckSchedule)
	assert.Equal(t, "readings", cfg.Target.Table)
	assert.Equal(t, "time", cfg.Target.TimeColumn)
	assert.Equal(t, 10*time.Second, cfg.Target.WriteTimeout)
	assert.False(t, cfg.Target.DisableTryParse)
	assert.Equal(t, "mapping.yaml", cfg.MappingFile)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "events", cfg.NATS.Subject)
	assert.Equal(t, "postgresql-pusher", cfg.NATS.Queue)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TARGET_TABLE", "telemetry.readings")
	t.Setenv("TIME_COLUMN", "ts")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1m")
	t.Setenv("WRITE_TIMEOUT", "2s")
	t.Setenv("DISABLE_TRY_PARSE", "true")
	t.Setenv("AUTH_USERNAME", "user")
	t.Setenv("AUTH_PASSWORD", "secret")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.Database.DSN)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 2*time.Second, cfg.Target.WriteTimeout)
	assert.True(t, cfg.Target.DisableTryParse)
	assert.Equal(t, "ts", cfg.Target.TimeColumn)
	assert.Equal(t, AuthConfig{Username: "user", Password: "secret"}, cfg.Auth)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestFromEnvInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing table":      {},
		"bad table":          {"TARGET_TABLE": "readings; drop"},
		"bad time column":    {"TARGET_TABLE": "r", "TIME_COLUMN": "a.b"},
		"bad driver":         {"TARGET_TABLE": "r", "DB_DRIVER": "mysql"},
		"bad integer":        {"TARGET_TABLE": "r", "DB_MAX_OPEN_CONNS": "many"},
		"bad duration":       {"TARGET_TABLE": "r", "WRITE_TIMEOUT": "10"},
		"bad boolean":        {"TARGET_TABLE": "r", "DISABLE_TRY_PARSE": "maybe"},
		"zero payload limit": {"TARGET_TABLE": "r", "MAX_JSON_PAYLOAD_SIZE": "0"},
		"password only":      {"TARGET_TABLE": "r", "AUTH_PASSWORD": "x"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnvReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MAX_IDLE_CONNS", "x")
	t.Setenv("WRITE_TIMEOUT", "y")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MAX_IDLE_CONNS")
	assert.Contains(t, err.Error(), "WRITE_TIMEOUT")
	assert.Contains(t, err.Error(), "TARGET_TABLE is required")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TARGET_TABLE=from_file\nAUTH_TOKEN=tok\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Target.Table)
	assert.Equal(t, "tok", cfg.Auth.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
