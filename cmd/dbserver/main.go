// cmd/dbserver/main.go
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
	"github.com/gamehall/gamehall/internal/dbservice"
	"github.com/gamehall/gamehall/internal/protocol"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Load()
	codec := &protocol.Codec{Token: cfg.Token}

	svc, err := dbservice.New(logger, codec, cfg.DBPath)
	if err != nil {
		logger.Fatalf("database service: %v", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(ctx, cfg.DBAddr())
	})
	// Admin shell on stdin: ad-hoc SQL, "exit" to stop.
	go svc.AdminShell(os.Stdin, stop)

	if err := g.Wait(); err != nil {
		logger.Fatalf("database service: %v", err)
	}
	logger.Info("database service stopped")
}
