package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/session"
	"github.com/insurechat/bridge/pkg/logger"
	"github.com/insurechat/bridge/pkg/storage"
	"github.com/insurechat/bridge/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := storage.NewObjectStore(log)
	if err != nil {
		log.Error("Failed to create object store", logger.Error(err))
		os.Exit(1)
	}

	sessions, err := session.NewStore(log)
	if err != nil {
		log.Error("Failed to create session store", logger.Error(err))
		os.Exit(1)
	}
	defer sessions.Close()

	storageCfg := config.GetStorageConfig()
	sessionCfg := config.GetSessionConfig()

	workerCfg := &worker.Config{
		RedisAddr:        sessionCfg.RedisAddr,
		RedisDB:          sessionCfg.RedisDB,
		Concurrency:      2,
		CleanupInterval:  "@every 1h",
		ArtifactLifetime: time.Duration(storageCfg.RetentionDays) * 24 * time.Hour,
		SessionLifetime:  sessionCfg.Retention,
	}

	maintenanceWorker, err := worker.NewMaintenanceWorker(workerCfg, store, sessions, log)
	if err != nil {
		log.Error("Failed to create maintenance worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := maintenanceWorker.Start(ctx); err != nil {
		log.Error("Failed to start maintenance worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	maintenanceWorker.Stop()
	log.Info("Worker stopped")
}
