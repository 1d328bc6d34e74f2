package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

// LoadPriorityContext reads PRIORITY_CONTEXT_FILE when set; otherwise the
// PRIORITY_* environment lists form the default context.
func LoadPriorityContext(cfg Config) (domain.PriorityContext, error) {
	fallback := domain.PriorityContext{
		CriticalTerms:     cfg.PriorityCriticalTerms,
		HighPriorityTerms: cfg.PriorityHighTerms,
		CoreProblem:       cfg.PriorityCoreProblem,
	}
	if cfg.PriorityContextFile == "" {
		return fallback, nil
	}

	raw, err := os.ReadFile(cfg.PriorityContextFile)
	if err != nil {
		return domain.PriorityContext{}, fmt.Errorf("read priority context file: %w", err)
	}
	var pctx domain.PriorityContext
	if err := yaml.Unmarshal(raw, &pctx); err != nil {
		return domain.PriorityContext{}, fmt.Errorf("parse priority context file: %w", err)
	}
	if pctx.IsZero() {
		return fallback, nil
	}
	return pctx, nil
}
