package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tenant-quiz-service/internal/config"
	transport "tenant-quiz-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const devClientName = "development"

func newStartCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), e)
		},
	}
}

func runServer(ctx context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	if err := checkBackends(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.durable() {
		applied, err := migrateDB(ctx, d)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "migrations", applied)
		}
	}

	svc := newServices(cfg, d)
	if !d.durable() {
		// Nothing persists, so nobody could have registered a client yet.
		client, creds, err := svc.clients.Create(ctx, devClientName)
		if err != nil {
			return err
		}
		logger.Warn("created in-memory client",
			"id", client.ID,
			"client_id", creds.ClientID,
			"client_secret", creds.ClientSecret)
	}

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.Services{
		Quizzes:   svc.quizzes,
		Questions: svc.questions,
		Versions:  svc.versions,
		Attempts:  svc.attempts,
		Auth:      svc.auth,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Scheduler.Embedded || !d.durable() {
		worker := svc.worker(d.queue, cfg, logger)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
