// Command server runs the Topprix storefront BFF.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/abhishek-Rj/Topprix-sub001/internal/app"
	"github.com/abhishek-Rj/Topprix-sub001/internal/config"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

const serviceName = "topprix-bff"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 2
	}

	log := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("bff starting",
		slog.String("version", buildVersion()),
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("identity_mode", cfg.IdentityMode),
		slog.Bool("events", len(cfg.KafkaBrokers) > 0),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("startup failed", slog.Any("error", err))
		return 1
	}
	if err := application.Run(ctx); err != nil {
		log.Error("bff exited with error", slog.Any("error", err))
		return 1
	}
	log.Info("bff stopped")
	return 0
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "devel"
	}
	return info.Main.Version
}
