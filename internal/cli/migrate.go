package cli

import (
	"context"
	"errors"

	"tenant-quiz-service/internal/infra/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), e)
		},
	}
}

func runMigrations(ctx context.Context, e *env) error {
	if e.cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}
	db, err := postgres.Open(ctx, e.cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		e.logger.Info("database is up to date")
		return nil
	}
	e.logger.Info("migrations applied", "migrations", applied)
	return nil
}

func migrateDB(ctx context.Context, d *deps) ([]string, error) {
	return postgres.Migrate(ctx, d.db)
}
