package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	yamlContent := `
server:
  listen_address: ":9999"
manager:
  root_path: "/tmp/test_qbuf"
  hard_watermark_bytes: 8388608 # 8 MiB
  default_expire: "45s"
`
	reader := strings.NewReader(yamlContent)
	cfg, err := Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9999", cfg.Server.ListenAddress)
	assert.Equal(t, "/tmp/test_qbuf", cfg.Manager.RootPath)
	assert.Equal(t, int64(8388608), cfg.Manager.HardWatermarkBytes)
	assert.Equal(t, "45s", cfg.Manager.DefaultExpire)

	// Check a default value that was not overridden.
	assert.Equal(t, "60s", cfg.Manager.IncompleteRelease)
}

func TestLoad_PartialConfig(t *testing.T) {
	yamlContent := `
manager:
  inmem_max_bytes: 5
`
	reader := strings.NewReader(yamlContent)
	cfg, err := Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(5), cfg.Manager.InmemMaxBytes)
	// Check defaults are still there.
	assert.Equal(t, ":50060", cfg.Server.ListenAddress)
	assert.Equal(t, "./data/qbuf", cfg.Manager.RootPath)
	assert.Equal(t, int64(10*1024*1024), cfg.Backend.MemTableSizeBytes)
}

func TestLoad_EmptyReader(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ":50060", cfg.Server.ListenAddress)

	reader := strings.NewReader("")
	cfg, err = Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ":50060", cfg.Server.ListenAddress)
}

func TestLoad_InvalidYAML(t *testing.T) {
	yamlContent := `
server:
  listen_address: ":9999"
manager:
  this: is: invalid: yaml
`
	reader := strings.NewReader(yamlContent)
	_, err := Load(reader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config yaml")
}

func TestLoadConfig_FileIntegration(t *testing.T) {
	t.Run("FileExists", func(t *testing.T) {
		yamlContent := `
server:
  listen_address: ":12345"
`
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")
		err := os.WriteFile(configPath, []byte(yamlContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, ":12345", cfg.Server.ListenAddress)
	})

	t.Run("FileDoesNotExist", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "non_existent_config.yaml")

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, ":50060", cfg.Server.ListenAddress)
	})
}

func TestParseDuration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultDuration := 10 * time.Second

	testCases := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{"ValidSeconds", "5s", 5 * time.Second},
		{"ValidMilliseconds", "500ms", 500 * time.Millisecond},
		{"ValidMinutes", "2m", 2 * time.Minute},
		{"EmptyString", "", defaultDuration},
		{"ZeroString", "0", defaultDuration},
		{"InvalidString", "5x", defaultDuration},
		{"JustNumber", "10", defaultDuration},
		{"NilLogger", "5x", defaultDuration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var testLogger *slog.Logger
			if tc.name != "NilLogger" {
				testLogger = logger
			}
			result := ParseDuration(tc.input, defaultDuration, testLogger)
			assert.Equal(t, tc.expected, result)
		})
	}
}
