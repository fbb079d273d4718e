package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tenant-quiz-service/internal/domain"
	"tenant-quiz-service/internal/scheduler"
)

// EndAttemptHandler returns the worker handler that force-ends expired attempts.
// Jobs for attempts that no longer exist are dropped rather than retried.
func EndAttemptHandler(attempts *AttemptService, logger *slog.Logger) scheduler.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, job scheduler.Job) error {
		var p EndAttemptPayload
		if err := job.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", scheduler.ErrDrop, err)
		}
		if p.TenantID == "" || p.AttemptID == "" {
			return fmt.Errorf("%w: incomplete payload", scheduler.ErrDrop)
		}

		ended, err := attempts.ForceEnd(ctx, p.TenantID, p.AttemptID)
		if errors.Is(err, domain.ErrAttemptNotFound) {
			logger.Warn("attempt to end not found", "tenant_id", p.TenantID, "attempt_id", p.AttemptID)
			return fmt.Errorf("%w: attempt %s not found", scheduler.ErrDrop, p.AttemptID)
		}
		if err != nil {
			return err
		}
		if ended {
			logger.Info("attempt expired", "tenant_id", p.TenantID, "attempt_id", p.AttemptID)
		}
		return nil
	}
}
