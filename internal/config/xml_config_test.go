package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Predictor.BaseURL)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<OncoScope>")
	assert.Contains(t, string(data), "<BaseURL>http://localhost:8000</BaseURL>")
}

func TestLoadConfig_ReadsFileAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.Predictor.BaseURL = "http://model:8000"
	cfg.Predictor.TimeoutSeconds = 5
	cfg.Catalog.ClassesFile = "classes.yaml"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, "http://model:8000", loaded.Predictor.BaseURL)
	assert.Equal(t, 5*time.Second, loaded.PredictTimeout())
	assert.Equal(t, filepath.Join(dir, "classes.yaml"), loaded.Catalog.ClassesFile)
	assert.Equal(t, "0.0.0.0:9100", loaded.GetServerAddr())
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	xml := `<OncoScope><Server><Port>9000</Port></Server></OncoScope>`
	require.NoError(t, os.WriteFile(path, []byte(xml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, "en", cfg.Query.Locale)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("PORT", "7000")
	t.Setenv("ONCO_PREDICTOR_BASE_URL", "https://predict.internal")
	t.Setenv("ONCO_UPLOAD_FEEDBACK_MILLIS", "1000")
	t.Setenv("ONCO_REQUEST_LOGGING", "false")
	t.Setenv("ONCO_LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://predict.internal", cfg.Predictor.BaseURL)
	assert.Equal(t, time.Second, cfg.UploadFeedbackDelay())
	assert.False(t, cfg.Advanced.EnableRequestLogging)
	assert.Equal(t, "json", cfg.Advanced.LogFormat)
	assert.True(t, cfg.Advanced.EnableMetrics, "unset variables keep file values")
}

func TestLoadConfig_InvalidXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte("<OncoScope>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"defaults", func(c *AppConfig) {}, ""},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, "Port"},
		{"bad url", func(c *AppConfig) { c.Predictor.BaseURL = "not a url" }, "BaseURL"},
		{"relative predict path", func(c *AppConfig) { c.Predictor.PredictPath = "predict" }, "PredictPath"},
		{"zero timeout", func(c *AppConfig) { c.Predictor.TimeoutSeconds = 0 }, "TimeoutSeconds"},
		{"bad log level", func(c *AppConfig) { c.Advanced.LogLevel = "loud" }, "LogLevel"},
		{"bad locale", func(c *AppConfig) { c.Query.Locale = "??" }, "Locale"},
		{"bad upload size", func(c *AppConfig) { c.Workflows.MaxUploadSize = "lots" }, "MaxUploadSize"},
		{"bad body limit", func(c *AppConfig) { c.Server.BodyLimit = "huge" }, "BodyLimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestMaxUploadBytes(t *testing.T) {
	c := DefaultConfig()
	c.Workflows.MaxUploadSize = "2M"
	n, err := c.MaxUploadBytes()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2_000_000))
	assert.LessOrEqual(t, n, int64(2*1024*1024))
}
