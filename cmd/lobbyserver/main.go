// cmd/lobbyserver/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gamehall/gamehall/internal/config"
	"github.com/gamehall/gamehall/internal/lobby"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Load()
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		logger.Fatalf("creating temp dir: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := lobby.New(cfg, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	// Admin console on stdin: "exit" stops the service.
	go srv.AdminConsole(os.Stdin, stop)

	if err := g.Wait(); err != nil {
		logger.Fatalf("lobby service: %v", err)
	}
	logger.Info("lobby service stopped")
}
