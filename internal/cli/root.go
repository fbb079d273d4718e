package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tenant-quiz-service/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// env is the state shared by every subcommand once flags are parsed.
type env struct {
	configPath string
	port       string
	cfg        config.Config
	logger     *slog.Logger
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	// .env only fills variables that are not already set.
	_ = godotenv.Load()

	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	e := &env{}
	cmd := &cobra.Command{
		Use:           "quiz-service",
		Short:         "Multi-tenant quiz service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", e.configPath, err)
			}
			if e.port != "" {
				cfg.Server.Port = e.port
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			e.cfg, e.logger = cfg, logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&e.port, "port", "", "port to listen on (overrides config and PORT)")
	cmd.PersistentFlags().StringVar(&e.configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(newStartCmd(e))
	cmd.AddCommand(newWorkerCmd(e))
	cmd.AddCommand(newMigrateCmd(e))
	cmd.AddCommand(newClientCmd(e))
	return cmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
