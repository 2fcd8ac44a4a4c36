package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AngelCh415/mediaplan/internal/app"
	"github.com/AngelCh415/mediaplan/internal/config"
)

func main() {
	cfg := config.FromEnv()
	if path := os.Getenv("MEDIAPLAN_CONFIG"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			slog.Error("config error", slog.String("err", err.Error()))
			os.Exit(1)
		}
		cfg = c
	}

	// stdout pertenece a MCP cuando está activo
	var out io.Writer = os.Stdout
	if cfg.MCPEnabled {
		out = os.Stderr
	}
	logger := app.NewLogger(cfg, out)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger).Run(ctx); err != nil {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
