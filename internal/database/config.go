package database

import (
	"fmt"
	"time"
)

// DatabaseConfig is a subset of the configuration focusing solely
// on database connection items
type DatabaseConfig struct {
	User            string      `yaml:"username" env:"DB_USERNAME" env-required:"true"`
	Password        string      `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	Name            string      `yaml:"name" env:"DB_NAME" env-default:"CURATOR_DB"`
	Host            string      `yaml:"host" env:"DB_HOST" env-default:"0.0.0.0"`
	Port            string      `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SSLMode         string      `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	ConnectAttempts int         `yaml:"connect_attempts" env:"DB_CONNECT_ATTEMPTS" env-default:"5" validate:"min=1"`
	LogQueries      bool        `yaml:"log_queries" env:"DB_LOG_QUERIES" env-default:"false"`
	Retry           RetryConfig `yaml:"retry"`
}

// RetryConfig controls the exponential backoff applied to
// catalog writes which fail.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" env:"DB_RETRY_INITIAL_INTERVAL" env-default:"500ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env:"DB_RETRY_MAX_INTERVAL" env-default:"10s"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time" env:"DB_RETRY_MAX_ELAPSED" env-default:"1m"`
}

func (config DatabaseConfig) DSN() string {
	return fmt.Sprintf(SQLConnectionString, config.Host, config.User, config.Password, config.Name, config.Port, config.SSLMode)
}
