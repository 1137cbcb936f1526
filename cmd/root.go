package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"db-datasync/internal/dialect"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	Conf    *Config
	Dialect dialect.Dialect
)

var RootCmd = &cobra.Command{
	Use:   "db-datasync",
	Short: "A SQL Server data synchronization script generator",
	Long: `
  ____  ____    ______   ___   _  ____
 |  _ \| __ )  / ___\ \ / / \ | |/ ___|
 | | | |  _ \  \___ \\ V /|  \| | |
 | |_| | |_) |  ___) || | | |\  | |___
 |____/|____/  |____/ |_| |_| \_|\____|

DB SYNC - compares two SQL Server databases and scripts the difference
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if err := applyTriggerFlag(cmd, c); err != nil {
			return err
		}

		logger, err := newLogger(c.Log.Level, c.Log.Format)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		if used := viper.ConfigFileUsed(); used != "" {
			zap.L().Info("using config file", zap.String("path", used))
		}

		Conf = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults(viper.GetViper())

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./db-datasync.yaml)")
	flags.String("source-dsn", "", "Source database DSN (hash mode)")
	flags.String("source-db", "", "Source database name, reachable from the target server (join mode)")
	flags.String("target-dsn", "", "Target database DSN")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.StringSliceP("tables", "t", nil, "Tables to include (schema.table, wildcards allowed)")
	flags.StringSlice("exclude", nil, "Tables to exclude (schema.table, wildcards allowed)")

	viper.BindPFlag("source.dsn", flags.Lookup("source-dsn"))
	viper.BindPFlag("source.database", flags.Lookup("source-db"))
	viper.BindPFlag("target.dsn", flags.Lookup("target-dsn"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("settings.tables", flags.Lookup("tables"))
	viper.BindPFlag("settings.exclude", flags.Lookup("exclude"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-datasync")
		viper.SetConfigType("yaml")
	}

	// DATASYNC_TARGET_DSN overrides target.dsn, and so on
	viper.SetEnvPrefix("DATASYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// a missing config file is fine, flags and environment may cover it
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger. Logs go to stderr so that a script
// written to stdout stays clean.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	switch format {
	case "json":
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	default:
		return nil, fmt.Errorf("invalid log.format %q (use console or json)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// connect opens and pings a database.
func connect(ctx context.Context, name string, c DBConfig) (*sql.DB, error) {
	db, err := sql.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s db: %w", name, err)
	}
	zap.L().Info("connected", zap.String("db", name), zap.String("driver", c.Driver))
	return db, nil
}

// openTarget validates the target settings and connects to the target.
func openTarget(ctx context.Context) (*sql.DB, error) {
	if err := Conf.ValidateTarget(); err != nil {
		return nil, err
	}
	d, err := dialect.GetDialect(Conf.Target.Driver)
	if err != nil {
		return nil, err
	}
	Dialect = d
	return connect(ctx, "target", Conf.Target)
}

// applyTriggerFlag lets an explicit --no-triggers override the config file.
// Commands without the flag keep the configured value.
func applyTriggerFlag(cmd *cobra.Command, c *Config) error {
	f := cmd.Flags().Lookup("no-triggers")
	if f == nil || !f.Changed {
		return nil
	}
	keep, err := cmd.Flags().GetBool("no-triggers")
	if err != nil {
		return err
	}
	c.Settings.DisableTriggers = !keep
	return nil
}
