package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/doj-records/records/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "DATA_DIR", "DATABASE_URL", "PGHOST", "REDIS_ADDR", "LOCK_TTL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, 600, cfg.RateLimitPerMinute)
	require.Empty(t, cfg.PostgresDSN())
}

func TestLoadConfigNormalizesEnv(t *testing.T) {
	t.Setenv("APP_ENV", " Production ")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.False(t, cfg.IsDevelopment())
}

func TestPostgresDSNPrecedence(t *testing.T) {
	cfg := &Config{PGHost: "db", PGPort: "5432", PGDatabase: "justice", PGUser: "u", PGPassword: "p"}
	require.Equal(t, "postgres://u:p@db:5432/justice", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://override/db"
	require.Equal(t, "postgres://override/db", cfg.PostgresDSN())

	partial := &Config{PGHost: "db", PGPort: "5432"}
	require.Empty(t, partial.PostgresDSN())
}

func TestPolicyConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("default = false\n[collections]\n\"warrants.json\" = true\n"), 0o644))

	cfg := &Config{AppEnv: "production", MigrationPolicyFile: path}
	pc, err := cfg.PolicyConfig()
	require.NoError(t, err)
	require.False(t, pc.Development)
	require.False(t, pc.Default)
	require.True(t, pc.Collections["warrants"])
	require.True(t, pc.Collections["cases"])

	dev := &Config{AppEnv: "development"}
	pc, err = dev.PolicyConfig()
	require.NoError(t, err)
	require.True(t, pc.Development)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"msg":"shown"`)
}
