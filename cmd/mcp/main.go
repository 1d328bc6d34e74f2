package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/coaching-kb/internal/adapters/mcp"
	"github.com/kirillkom/coaching-kb/internal/bootstrap"
	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout is the JSON-RPC channel.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Inline: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcp.NewServer(app.KnowledgeUC)
	if err != nil {
		slog.Error("mcp_init_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("mcp_serving", "transport", "stdio", "tools", server.Tools())
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
		os.Exit(1)
	}
}
