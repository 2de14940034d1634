// Package config defines the global configuration structure for the GymDesk
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup (fail fast).
package config

import (
	"time"

	"gymdesk/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the GymDesk platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gymdesk-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Auth     AuthConfig
	Billing  BillingConfig
	AI       AIConfig
	Feature  FeatureConfig
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// AlertQueueURL is the SQS queue consumed by the external notification
	// service. Empty disables alert dispatch (local development).
	AlertQueueURL string `envconfig:"SQS_BILLING_ALERTS"`

	// MetricsEnabled toggles CloudWatch metric emission.
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"false"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AuthConfig holds the connection settings for the external auth service
// that resolves bearer tokens into actors.
type AuthConfig struct {
	EndpointURL string        `envconfig:"AUTH_ENDPOINT_URL" default:"http://localhost:9091"`
	Timeout     time.Duration `envconfig:"AUTH_TIMEOUT" default:"5s"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// AIConfig holds the connection settings for the external AI service that
// performs routine generation, nutrition analysis, vision analysis, and chat.
type AIConfig struct {
	EndpointURL string        `envconfig:"AI_ENDPOINT_URL" default:"http://localhost:9090"`
	APIKey      SecretString  `envconfig:"AI_API_KEY"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
}

// FeatureConfig holds emergency kill switches for system capabilities.
type FeatureConfig struct {
	EnableAI     bool `envconfig:"FEATURE_ENABLE_AI" default:"true"`
	EnableAlerts bool `envconfig:"FEATURE_ENABLE_ALERTS" default:"true"`
}
