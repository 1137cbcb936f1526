package cmd

import (
	"fmt"
	"strings"

	"db-datasync/internal/dialect"
	"db-datasync/internal/engine"

	"github.com/spf13/viper"
)

const (
	ModeJoin = "join"
	ModeHash = "hash"
)

type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
}

type Settings struct {
	Mode            string   `mapstructure:"mode"`
	BatchSize       int      `mapstructure:"batch_size"`
	Parallel        int      `mapstructure:"parallel"`
	DisableTriggers bool     `mapstructure:"disable_triggers"`
	Tables          []string `mapstructure:"tables"`
	Exclude         []string `mapstructure:"exclude"`
	Output          string   `mapstructure:"output"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Source   DBConfig  `mapstructure:"source"`
	Target   DBConfig  `mapstructure:"target"`
	Settings Settings  `mapstructure:"settings"`
	Log      LogConfig `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.driver", "sqlserver")
	v.SetDefault("target.driver", "sqlserver")
	v.SetDefault("settings.mode", ModeJoin)
	v.SetDefault("settings.batch_size", engine.DefaultBatchSize)
	v.SetDefault("settings.parallel", engine.DefaultParallel)
	v.SetDefault("settings.disable_triggers", true)
	v.SetDefault("settings.output", "-")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads the merged flag, environment and file settings.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.Settings.Mode = strings.ToLower(strings.TrimSpace(c.Settings.Mode))
	return &c, nil
}

// ValidateTarget checks the settings every command needs.
func (c *Config) ValidateTarget() error {
	if c.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required (via flag or config)")
	}
	if _, err := dialect.GetDialect(c.Target.Driver); err != nil {
		return fmt.Errorf("target.driver: %w", err)
	}
	return nil
}

// Validate checks the settings needed to compare databases.
func (c *Config) Validate() error {
	if err := c.ValidateTarget(); err != nil {
		return err
	}

	switch c.Settings.Mode {
	case ModeJoin:
		if c.Source.Database == "" {
			return fmt.Errorf("source.database is required in %s mode", ModeJoin)
		}
	case ModeHash:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required in %s mode", ModeHash)
		}
		if _, err := dialect.GetDialect(c.Source.Driver); err != nil {
			return fmt.Errorf("source.driver: %w", err)
		}
	default:
		return fmt.Errorf("unknown settings.mode %q (use %s or %s)", c.Settings.Mode, ModeJoin, ModeHash)
	}

	if c.Settings.BatchSize <= 0 {
		return fmt.Errorf("settings.batch_size must be positive, got %d", c.Settings.BatchSize)
	}
	if c.Settings.Parallel <= 0 {
		return fmt.Errorf("settings.parallel must be positive, got %d", c.Settings.Parallel)
	}
	return nil
}
