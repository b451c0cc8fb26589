package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))

	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, int64(500), cfg.MinCaptureBytes)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, "uncheckable.m3u", cfg.UncheckablePath)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{
		"workers": 4,
		"timeout": "8s",
		"captureGrace": "3s",
		"ocr": true,
		"output": "good.m3u",
		"logFormat": "url",
		"uncheckablePath": "",
		"streamPatterns": {".flac": "audio"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg := LoadConfig(path)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 8*time.Second, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.CaptureGrace)
	assert.True(t, cfg.OCR)
	assert.Equal(t, "good.m3u", cfg.Output)
	assert.Equal(t, "url", cfg.LogFormat)
	assert.Empty(t, cfg.UncheckablePath)
	assert.Equal(t, map[string]string{".flac": "audio"}, cfg.StreamPatterns)
	assert.Equal(t, 2*time.Second, cfg.OCROffset)
}

func TestLoadConfigInvalidFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout": "soon"}`), 0644))

	cfg := LoadConfig(path)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestValidateAndSetDefaultsClamps(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"zero", 0, DefaultWorkers},
		{"negative", -3, DefaultWorkers},
		{"in range", 7, 7},
		{"too many", 64, MaxWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workers = tt.workers
			cfg.LogFormat = "weird"
			validateAndSetDefaults(cfg)
			assert.Equal(t, tt.want, cfg.Workers)
			assert.Equal(t, "name", cfg.LogFormat)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Workers = 21
	assert.Error(t, cfg.Validate())

	cfg.Workers = 1
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg.Timeout = time.Second
	cfg.LogFormat = "json"
	assert.Error(t, cfg.Validate())
}

func TestCreateExampleConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.json")
	require.NoError(t, CreateExampleConfig(path))

	cfg := LoadConfig(path)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.CaptureGrace)
}
