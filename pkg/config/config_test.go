package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/extrasync.db
extra_file_extensions: ".srt, .nfo, .jpg"
copy_using_hardlinks: false
scan_concurrency: 8
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/extrasync.db", cfg.DatabaseFilePath)
	assert.Equal(t, ".srt, .nfo, .jpg", cfg.ExtraFileExtensions)
	assert.False(t, cfg.CopyUsingHardlinks)
	assert.Equal(t, 8, cfg.ScanConcurrency)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
worker_processes: 3
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("WORKER_PROCESSES", "6")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, 6, cfg.WorkerProcesses)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.DatabaseBusyTimeout)
	assert.Equal(t, "srt,nfo", cfg.ExtraFileExtensions)
	assert.True(t, cfg.CopyUsingHardlinks)
	assert.Equal(t, PathComparisonAuto, cfg.PathComparison)
	assert.Equal(t, "@every 24h", cfg.HousekeepingSchedule)
	assert.Equal(t, 2, cfg.WorkerProcesses)
}

func TestNew_DurationFromEnv(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("WORKER_POLL_INTERVAL", "750ms")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.WorkerPollInterval)
}

func TestCheckRequired(t *testing.T) {
	cfg := NewForTest()
	cfg.DatabaseFilePath = ""

	err := checkRequired(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATABASE_FILE_PATH")
	assert.Contains(t, err.Error(), "database_file_path")
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, 1, cfg.WorkerProcesses)
	assert.True(t, cfg.CopyUsingHardlinks)
	assert.True(t, cfg.ImportExtraFiles)
}

func TestWantedExtensions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"bare", "srt,nfo", []string{".srt", ".nfo"}},
		{"dotted with spaces", ".nfo, .srt, .jpg", []string{".nfo", ".srt", ".jpg"}},
		{"upper case", "SRT, Sub", []string{".srt", ".sub"}},
		{"empty entries", "srt,, ,", []string{".srt"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ExtraFileExtensions: tt.input}
			assert.Equal(t, tt.expected, cfg.WantedExtensions())
		})
	}
}

func TestEnabledMetadataConsumers(t *testing.T) {
	cfg := &Config{MetadataConsumers: " Kodi, ,mediabrowser"}
	assert.Equal(t, []string{"kodi", "mediabrowser"}, cfg.EnabledMetadataConsumers())

	cfg = &Config{}
	assert.Empty(t, cfg.EnabledMetadataConsumers())

	assert.Equal(t, []string{"kodi", "mediabrowser"}, NewForTest().EnabledMetadataConsumers())
}

func TestFoldPaths(t *testing.T) {
	assert.True(t, (&Config{PathComparison: PathComparisonFold}).FoldPaths())
	assert.False(t, (&Config{PathComparison: PathComparisonExact}).FoldPaths())
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "extra_file_extensions", toSnakeCase("ExtraFileExtensions"))
	assert.Equal(t, "copy_using_hardlinks", toSnakeCase("CopyUsingHardlinks"))
}
