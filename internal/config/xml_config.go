// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/gommon/bytes"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"OncoScope"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Prediction service endpoint
	Predictor PredictorConfig `xml:"Predictor"`

	// Workflow limits
	Workflows WorkflowConfig `xml:"Workflows"`

	// Result table behavior
	Query QueryConfig `xml:"Query"`

	Export ExportConfig `xml:"Export"`

	Catalog CatalogConfig `xml:"Catalog"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int    `xml:"Port" validate:"min=1,max=65535"`
	BindAddress     string `xml:"BindAddress" validate:"required"`
	EnableCORS      bool   `xml:"EnableCORS"`
	AllowOrigins    string `xml:"AllowOrigins"`
	ReadTimeout     int    `xml:"ReadTimeoutSeconds" validate:"min=1"`
	WriteTimeout    int    `xml:"WriteTimeoutSeconds" validate:"min=0"`
	IdleTimeout     int    `xml:"IdleTimeoutSeconds" validate:"min=1"`
	ShutdownTimeout int    `xml:"ShutdownTimeoutSeconds" validate:"min=1"`
	BodyLimit       string `xml:"BodyLimit" validate:"required"`
}

// PredictorConfig locates the remote prediction service.
type PredictorConfig struct {
	BaseURL              string `xml:"BaseURL" validate:"required,url"`
	PredictPath          string `xml:"PredictPath" validate:"required,startswith=/"`
	TemplatePath         string `xml:"TemplatePath" validate:"required,startswith=/"`
	TimeoutSeconds       int    `xml:"TimeoutSeconds" validate:"min=1"`
	UploadFeedbackMillis int    `xml:"UploadFeedbackMillis" validate:"min=0"`
}

// WorkflowConfig bounds the in-memory workflows.
type WorkflowConfig struct {
	MaxWorkflows           int    `xml:"MaxWorkflows" validate:"min=1"`
	IdleTimeoutMinutes     int    `xml:"IdleTimeoutMinutes" validate:"min=1"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes" validate:"min=1"`
	MaxUploadSize          string `xml:"MaxUploadSize" validate:"required"`
	PreviewRows            int    `xml:"PreviewRows" validate:"min=0"`
}

// QueryConfig controls result ordering.
type QueryConfig struct {
	Locale string `xml:"Locale" validate:"required,bcp47_language_tag"`
}

// ExportConfig controls downloads.
type ExportConfig struct {
	SheetName string `xml:"SheetName" validate:"required,max=31"`
}

// CatalogConfig points at an optional class catalog override.
type CatalogConfig struct {
	ClassesFile string `xml:"ClassesFile"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel" validate:"oneof=trace debug info warn error"`
	LogFormat            string `xml:"LogFormat" validate:"oneof=console json"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableMetrics        bool   `xml:"EnableMetrics"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:            8089,
			BindAddress:     "0.0.0.0",
			EnableCORS:      true,
			AllowOrigins:    "*",
			ReadTimeout:     30,
			WriteTimeout:    0,
			IdleTimeout:     120,
			ShutdownTimeout: 15,
			BodyLimit:       "64M",
		},
		Predictor: PredictorConfig{
			BaseURL:              "http://localhost:8000",
			PredictPath:          "/predict",
			TemplatePath:         "/template",
			TimeoutSeconds:       120,
			UploadFeedbackMillis: 0,
		},
		Workflows: WorkflowConfig{
			MaxWorkflows:           50,
			IdleTimeoutMinutes:     30,
			CleanupIntervalMinutes: 5,
			MaxUploadSize:          "50M",
			PreviewRows:            20,
		},
		Query: QueryConfig{
			Locale: "en",
		},
		Export: ExportConfig{
			SheetName: "Predictions",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			EnableRequestLogging: true,
			EnableMetrics:        true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- OncoScope Backend Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides lets ONCO_* variables, and the bare PORT used by
// container platforms, override file values.
func (c *AppConfig) applyEnvironmentOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	return applyEnv(c)
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Catalog.ClassesFile != "" && !filepath.IsAbs(c.Catalog.ClassesFile) {
		c.Catalog.ClassesFile = filepath.Join(configDir, c.Catalog.ClassesFile)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// PredictTimeout returns the per-call deadline of the prediction service.
func (c *AppConfig) PredictTimeout() time.Duration {
	return time.Duration(c.Predictor.TimeoutSeconds) * time.Second
}

// UploadFeedbackDelay returns how long a run stays in the uploading state.
func (c *AppConfig) UploadFeedbackDelay() time.Duration {
	return time.Duration(c.Predictor.UploadFeedbackMillis) * time.Millisecond
}

// IdleTimeout returns how long an untouched workflow is kept.
func (c *AppConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Workflows.IdleTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the idle workflow sweep.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Workflows.CleanupIntervalMinutes) * time.Minute
}

// MaxUploadBytes parses Workflows.MaxUploadSize ("50M", "1GB").
func (c *AppConfig) MaxUploadBytes() (int64, error) {
	n, err := bytes.Parse(c.Workflows.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid MaxUploadSize %q: %w", c.Workflows.MaxUploadSize, err)
	}
	return n, nil
}
