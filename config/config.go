// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Config holds the process settings read from the environment.
type Config struct {
	QueueURL  string `envconfig:"QUEUE_URL" validate:"required"`
	Store     string `envconfig:"STORE" default:"dynamodb" validate:"oneof=dynamodb postgres"`
	TableName string `envconfig:"TABLE_NAME" validate:"required_if=Store dynamodb"`
	AWSRegion string `envconfig:"AWS_REGION"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432" validate:"min=1,max=65535"`
	PostgresUser     string `envconfig:"POSTGRES_USER" validate:"required_if=Store postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDatabase string `envconfig:"POSTGRES_DATABASE" validate:"required_if=Store postgres"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	PostgresTable    string `envconfig:"POSTGRES_TABLE" default:"suppressions"`

	SkipSchemaValidation bool `envconfig:"SKIP_SCHEMA_VALIDATION" default:"false"`

	// Ignored notifications are left on the queue unless this is set.
	AckIgnoredNotifications bool `envconfig:"ACK_IGNORED_NOTIFICATIONS" default:"false"`

	// Time budget for a single drain when not running under Lambda.
	LocalTimeBudget time.Duration `envconfig:"LOCAL_TIME_BUDGET" default:"60s" validate:"gt=0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"production"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	return load(validate.Struct)
}

// LoadStore is like Load but does not require the queue settings. It serves
// tools that only read the suppression store.
func LoadStore() (*Config, error) {
	return load(func(s any) error { return validate.StructExcept(s, "QueueURL") })
}

func load(check func(any) error) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	if err := check(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Development reports whether human readable console logs should be used.
func (c *Config) Development() bool {
	return c.Env == "development"
}
