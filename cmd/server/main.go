package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/insurechat/bridge/api/handlers"
	"github.com/insurechat/bridge/api/routes"
	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/bridge"
	"github.com/insurechat/bridge/internal/citation"
	"github.com/insurechat/bridge/internal/gateway"
	"github.com/insurechat/bridge/internal/ingest"
	"github.com/insurechat/bridge/internal/ocr"
	"github.com/insurechat/bridge/internal/rasterize"
	"github.com/insurechat/bridge/internal/session"
	"github.com/insurechat/bridge/pkg/logger"
	"github.com/insurechat/bridge/pkg/storage"
)

func main() {
	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/app.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	chatService, cleanup, err := buildService(log)
	if err != nil {
		log.Fatal("Failed to build chat service", logger.Error(err))
	}
	defer cleanup()

	h := handlers.NewHandlers(chatService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		log.Info("Server starting on port 8080")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}

func buildService(log logger.Logger) (bridge.Service, func(), error) {
	store, err := storage.NewObjectStore(log)
	if err != nil {
		return nil, nil, err
	}

	engine, err := ocr.NewEngine(config.GetOCRConfig(), log)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := session.NewStore(log)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}

	storageCfg := config.GetStorageConfig()
	pipeline := ingest.NewPipeline(store, rasterize.NewWorker(engine, log), sessions, log)
	gw := gateway.NewClient(config.GetUpstreamConfig(), log)
	resolver := citation.NewResolver(store, storageCfg.SignedURLTTL, log)

	cleanup := func() {
		engine.Close()
		sessions.Close()
	}

	return bridge.NewService(pipeline, gw, resolver, sessions, log), cleanup, nil
}
