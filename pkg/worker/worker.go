package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/insurechat/bridge/internal/session"
	"github.com/insurechat/bridge/pkg/logger"
	"github.com/insurechat/bridge/pkg/storage"
)

// TaskTypeCleanup sweeps expired page artifacts and idle sessions.
const TaskTypeCleanup = "maintenance:cleanup"

// Config configures the maintenance worker.
type Config struct {
	RedisAddr        string
	RedisDB          int
	Concurrency      int
	CleanupInterval  string // asynq cron/interval spec, e.g. "@every 1h"
	ArtifactLifetime time.Duration
	SessionLifetime  time.Duration
}

// MaintenanceWorker runs periodic housekeeping: object-store retention
// and session eviction. Conversations are conceptually abandoned after
// a while; their artifacts and state are reclaimed here.
type MaintenanceWorker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	store     storage.ObjectStore
	sessions  session.Store
	cfg       *Config
	logger    logger.Logger
}

func NewMaintenanceWorker(cfg *Config, store storage.ObjectStore, sessions session.Store, log logger.Logger) (*MaintenanceWorker, error) {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})

	scheduler := asynq.NewScheduler(redisOpt, nil)

	w := &MaintenanceWorker{
		server:    server,
		scheduler: scheduler,
		mux:       asynq.NewServeMux(),
		store:     store,
		sessions:  sessions,
		cfg:       cfg,
		logger:    log,
	}
	w.mux.HandleFunc(TaskTypeCleanup, w.handleCleanup)

	interval := cfg.CleanupInterval
	if interval == "" {
		interval = "@every 1h"
	}
	if _, err := scheduler.Register(interval, asynq.NewTask(TaskTypeCleanup, nil)); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *MaintenanceWorker) handleCleanup(ctx context.Context, t *asynq.Task) error {
	artifactThreshold := time.Now().Add(-w.cfg.ArtifactLifetime)
	if err := w.store.CleanupBefore(ctx, artifactThreshold); err != nil {
		w.logger.Error("Artifact cleanup failed", logger.Error(err))
		return err
	}

	sessionThreshold := time.Now().Add(-w.cfg.SessionLifetime)
	evicted, err := w.sessions.EvictIdle(ctx, sessionThreshold)
	if err != nil {
		w.logger.Error("Session eviction failed", logger.Error(err))
		return err
	}

	w.logger.Info("Maintenance cleanup complete",
		logger.Time("artifactThreshold", artifactThreshold),
		logger.Int("sessionsEvicted", evicted),
	)
	return nil
}

// Start runs the task server and the periodic scheduler until ctx is
// cancelled.
func (w *MaintenanceWorker) Start(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}

	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Maintenance worker stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

func (w *MaintenanceWorker) Stop() {
	w.scheduler.Shutdown()
	w.server.Stop()
	w.server.Shutdown()
}
