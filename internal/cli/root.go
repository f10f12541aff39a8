// Package cli implements the hamster command line.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hamster/internal/config"
	"hamster/internal/logging"
)

// RootOptions holds global flags and what PersistentPreRunE builds from them.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string

	Config *config.Config
	Logger *logging.Logger
}

// NewRootCommand creates the root command for the hamster CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hamster",
		Short: "Hamster keyboard core",
		Long: `Drive the hamster keyboard core from the command line.

Validates keyboard documents, manages input schemas, deploys them into
the table engine and replays typing and swipe gestures against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				opts.Logger.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default: "+config.ConfigPath()+")")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", ".env", "path to .env file (ignored if missing)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSchemasCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewSwipeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func (o *RootOptions) setup() error {
	if err := loadDotEnv(o.EnvFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	o.Config = cfg

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	// Children name their own component.
	lc.Component = ""
	logger, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	o.Logger = logger
	logging.SetDefault(logger)
	return nil
}

// component returns the child logger for name.
func (o *RootOptions) component(name string) *slog.Logger {
	if o.Logger == nil {
		return slog.Default().With("component", name)
	}
	return o.Logger.WithComponent(name)
}

// loadDotEnv loads environment variables from path. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
