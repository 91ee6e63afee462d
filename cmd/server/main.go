package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/stripe-sync/config"
	"github.com/Dhoini/stripe-sync/internal/app"
	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Загрузка конфигурации (.env подхватывается вне production)
	cfg, err := config.Load(".env")
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Logging.Level))
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	// Запуск сервера в горутине
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Run()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Errorw("Server stopped unexpectedly", "error", err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := application.Shutdown(ctxShutdown); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
		return
	}

	log.Info("Server stopped gracefully")
}
