package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/config"
	"tenant-quiz-service/internal/infra/memory"
	"tenant-quiz-service/internal/infra/postgres"
	redisinfra "tenant-quiz-service/internal/infra/redis"
	"tenant-quiz-service/internal/scheduler"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// deps are the backing services a command runs against. Without Postgres the tenant
// and client stores live in memory; without Redis so do the job queue and the client
// cache.
type deps struct {
	db      *bun.DB
	redis   redis.UniversalClient
	schemas app.SchemaFactory
	clients app.ClientStore
	queue   scheduler.Queue
}

func openDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		d.db = db
		d.schemas = postgres.NewSchemaFactory(db)
		d.clients = postgres.NewClientStore(db)
	} else {
		logger.Warn("postgres not configured, using in-memory stores")
		d.schemas = memory.NewSchemaFactory()
		d.clients = memory.NewClientStore()
	}

	cacheTTL := config.TTLDuration(cfg.Auth.CacheTTL, time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.redis = client
		d.queue = redisinfra.NewJobQueue(client, cfg.Scheduler.QueuePrefix)
		d.clients = redisinfra.NewClientCache(client, d.clients, cacheTTL)
	} else {
		logger.Warn("redis not configured, using in-memory job queue")
		d.queue = memory.NewJobQueue()
		d.clients = memory.NewClientCache(d.clients, cacheTTL)
	}
	return d, nil
}

// checkBackends refuses Postgres without Redis: attempts would survive a restart
// while their deadline jobs, held in memory, would not.
func checkBackends(cfg config.Config) error {
	if cfg.Postgres.URL != "" && cfg.Redis.Addr == "" {
		return errors.New("postgres storage needs redis configured for the deadline job queue")
	}
	return nil
}

// durable reports whether state survives the process.
func (d *deps) durable() bool {
	return d.db != nil
}

func (d *deps) Close() error {
	var errs []error
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}

func workerOptions(cfg config.Config) scheduler.Options {
	def := scheduler.DefaultOptions()
	s := cfg.Scheduler
	return scheduler.Options{
		PollInterval: config.TTLDuration(s.PollInterval, def.PollInterval),
		BatchSize:    s.BatchSize,
		Concurrency:  s.Concurrency,
		MaxAttempts:  s.MaxAttempts,
		Backoff:      config.TTLDuration(s.Backoff, def.Backoff),
		MaxBackoff:   config.TTLDuration(s.MaxBackoff, def.MaxBackoff),
		Visibility:   config.TTLDuration(s.VisibilityTimeout, def.Visibility),
	}
}

// services wires the use cases over d.
type services struct {
	quizzes   *app.QuizService
	questions *app.QuestionService
	versions  *app.VersionService
	attempts  *app.AttemptService
	clients   *app.ClientService
	auth      *app.Authenticator
}

func newServices(cfg config.Config, d *deps) *services {
	tenants := app.NewTenantRegistry(d.schemas)
	return &services{
		quizzes:   app.NewQuizService(tenants),
		questions: app.NewQuestionService(tenants),
		versions:  app.NewVersionService(tenants),
		attempts:  app.NewAttemptService(tenants, scheduler.New(d.queue)),
		clients:   app.NewClientService(d.clients),
		auth:      app.NewAuthenticator(d.clients, cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, time.Hour)),
	}
}

func (s *services) worker(queue scheduler.Queue, cfg config.Config, logger *slog.Logger) *scheduler.Worker {
	w := scheduler.NewWorker(queue, workerOptions(cfg), logger)
	w.Handle(app.JobEndAttempt, app.EndAttemptHandler(s.attempts, logger))
	return w
}
