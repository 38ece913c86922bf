package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/config"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, logger, slog.Default())

	logger = SetupLogger(nil)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "8099")
	t.Setenv("DATA_BACKEND", "memory")
	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "8099", cfg.Port)

	t.Setenv("PORT", "not-a-port")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "invalid port")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHOREBOARD_TEST_VAR=from-dotenv\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("CHOREBOARD_TEST_VAR")
	})

	LoadEnvFile()
	assert.Equal(t, "from-dotenv", os.Getenv("CHOREBOARD_TEST_VAR"))
}
