package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment overrides, e.g. ONCO_PREDICTOR_BASE_URL.
const EnvPrefix = "ONCO"

// envOverrides mirrors the settings that may come from the environment. Nil
// fields were not set and leave the file value alone.
type envOverrides struct {
	Port                 *int    `envconfig:"PORT"`
	BindAddress          *string `envconfig:"BIND_ADDRESS"`
	AllowOrigins         *string `envconfig:"ALLOW_ORIGINS"`
	BodyLimit            *string `envconfig:"BODY_LIMIT"`
	PredictorBaseURL     *string `envconfig:"PREDICTOR_BASE_URL"`
	PredictorTimeout     *int    `envconfig:"PREDICTOR_TIMEOUT_SECONDS"`
	UploadFeedbackMillis *int    `envconfig:"UPLOAD_FEEDBACK_MILLIS"`
	MaxWorkflows         *int    `envconfig:"MAX_WORKFLOWS"`
	MaxUploadSize        *string `envconfig:"MAX_UPLOAD_SIZE"`
	Locale               *string `envconfig:"LOCALE"`
	ClassesFile          *string `envconfig:"CLASSES_FILE"`
	LogLevel             *string `envconfig:"LOG_LEVEL"`
	LogFormat            *string `envconfig:"LOG_FORMAT"`
	RequestLogging       *bool   `envconfig:"REQUEST_LOGGING"`
	Metrics              *bool   `envconfig:"METRICS"`
}

func applyEnv(c *AppConfig) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to load config from env: %w", err)
	}

	setInt(&c.Server.Port, env.Port)
	setString(&c.Server.BindAddress, env.BindAddress)
	setString(&c.Server.AllowOrigins, env.AllowOrigins)
	setString(&c.Server.BodyLimit, env.BodyLimit)
	setString(&c.Predictor.BaseURL, env.PredictorBaseURL)
	setInt(&c.Predictor.TimeoutSeconds, env.PredictorTimeout)
	setInt(&c.Predictor.UploadFeedbackMillis, env.UploadFeedbackMillis)
	setInt(&c.Workflows.MaxWorkflows, env.MaxWorkflows)
	setString(&c.Workflows.MaxUploadSize, env.MaxUploadSize)
	setString(&c.Query.Locale, env.Locale)
	setString(&c.Catalog.ClassesFile, env.ClassesFile)
	setString(&c.Advanced.LogLevel, env.LogLevel)
	setString(&c.Advanced.LogFormat, env.LogFormat)
	setBool(&c.Advanced.EnableRequestLogging, env.RequestLogging)
	setBool(&c.Advanced.EnableMetrics, env.Metrics)
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
