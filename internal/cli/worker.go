package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker that ends expired attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), e)
		},
	}
}

func runWorker(ctx context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	if cfg.Postgres.URL == "" || cfg.Redis.Addr == "" {
		return errors.New("a standalone worker needs both postgres and redis configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	return newServices(cfg, d).worker(d.queue, cfg, logger).Run(ctx)
}
