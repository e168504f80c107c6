package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Curator/internal/api"
	"github.com/hbomb79/Curator/internal/database"
	"github.com/hbomb79/Curator/internal/failure"
	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
	"github.com/robfig/cron/v3"
)

// CuratorConfig is the struct used to contain the
// various user config supplied by file, or
// by the environment.
type CuratorConfig struct {
	Database    database.DatabaseConfig `yaml:"database" env-required:"true"`
	Inventory   inventory.Config        `yaml:"inventory"`
	Tmdb        tmdb.Config             `yaml:"tmdb"`
	Reconcile   reconcile.Config        `yaml:"reconcile"`
	Failure     failure.Config          `yaml:"failure"`
	Schedule    ScheduleConfig          `yaml:"schedule"`
	RestConfig  api.RestConfig          `yaml:"api"`
	LockDir     string                  `yaml:"lock_dir" env:"CURATOR_LOCK_DIR" env-default:"~/.cache/curator/locks"`
	HistorySize int                     `yaml:"history_size" env:"CURATOR_HISTORY_SIZE" env-default:"50" validate:"min=1"`
}

// ScheduleConfig describes the libraries which are reconciled periodically
// while serving. An empty Cron disables scheduling.
type ScheduleConfig struct {
	Cron      string             `yaml:"cron" env:"SCHEDULE_CRON"`
	Libraries []ScheduledLibrary `yaml:"libraries" validate:"dive"`
}

type ScheduledLibrary struct {
	ID   string `yaml:"id" validate:"required"`
	Kind string `yaml:"kind" validate:"oneof=movie music"`
}

// LoadConfig reads the YAML configuration at path (if any), applying
// environment overrides and defaults, and validates the result.
func LoadConfig(path string) (*CuratorConfig, error) {
	config := &CuratorConfig{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	lockDir, err := homedir.Expand(config.LockDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand lock directory %s: %w", config.LockDir, err)
	}
	config.LockDir = lockDir

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (config *CuratorConfig) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if config.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(config.Schedule.Cron); err != nil {
			return fmt.Errorf("configuration invalid: schedule.cron %q: %w", config.Schedule.Cron, err)
		}
	}

	return nil
}
