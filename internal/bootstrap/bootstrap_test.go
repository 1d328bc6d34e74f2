package bootstrap

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/queue/inline"
)

func inlineConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		KnowledgeStore:   "memory",
		ExtractorBackend: "ollama",
		EnhancerBackend:  "ollama",
		OllamaURL:        "http://127.0.0.1:1",
		OllamaGenModel:   "test",
		OllamaEnhModel:   "test",
	}
}

func TestNewInlineWiresUseCases(t *testing.T) {
	app, err := New(context.Background(), inlineConfig(t), Options{Inline: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.IngestUC == nil || app.ProcessUC == nil || app.KnowledgeUC == nil || app.Dedup == nil {
		t.Fatalf("use cases not wired: %+v", app)
	}
	if _, ok := app.Queue.(*inline.Queue); !ok {
		t.Fatalf("expected inline queue, got %T", app.Queue)
	}
	if app.Suggestions != nil {
		t.Fatalf("inline mode must not wire a suggestion bus")
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cases := map[string]func(*config.Config){
		"KNOWLEDGE_STORE":   func(c *config.Config) { c.KnowledgeStore = "redis" },
		"EXTRACTOR_BACKEND": func(c *config.Config) { c.ExtractorBackend = "magic" },
		"ENHANCER_BACKEND":  func(c *config.Config) { c.EnhancerBackend = "magic" },
	}
	for name, mutate := range cases {
		cfg := inlineConfig(t)
		mutate(&cfg)
		app, err := New(context.Background(), cfg, Options{Inline: true})
		if err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected error naming the setting, got %v", name, err)
		}
		if app != nil {
			t.Fatalf("%s: expected nil app on error", name)
		}
	}
}

func TestNewLocalFSStore(t *testing.T) {
	cfg := inlineConfig(t)
	cfg.KnowledgeStore = "localfs"
	cfg.StoragePath = t.TempDir()

	app, err := New(context.Background(), cfg, Options{Inline: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if err := app.Store.Set(context.Background(), "documents/x", []byte(`{}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}
