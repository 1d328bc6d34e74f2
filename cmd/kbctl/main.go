package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/coaching-kb/internal/adapters/cli"
	"github.com/kirillkom/coaching-kb/internal/bootstrap"
	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries command output; logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "kbctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Inline: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbctl: %v\n", err)
		return 1
	}
	defer app.Close()

	root, err := cli.NewRootCommand(cli.Services{
		Ingest:      app.IngestUC,
		Knowledge:   app.KnowledgeUC,
		Suggestions: app.Dedup,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kbctl: %v\n", err)
		return 1
	}
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kbctl: %v\n", err)
		return 1
	}
	return 0
}
