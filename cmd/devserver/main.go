// cmd/devserver/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/gamehall/gamehall/internal/config"
	"github.com/gamehall/gamehall/internal/devsvc"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Load()
	for _, dir := range []string{cfg.TempDir, cfg.StorageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("creating %s: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devsvc.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Fatalf("developer service: %v", err)
	}
	logger.Info("developer service stopped")
}
