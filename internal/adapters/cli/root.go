// Package cli is the kbctl command tree over the knowledge base use cases.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

var ErrMissingServices = errors.New("cli: ingest and knowledge services are required")

// Services are the use cases the commands drive. Suggestions may be nil,
// which disables the dedup command.
type Services struct {
	Ingest      ports.DocumentIngestor
	Knowledge   ports.KnowledgeReader
	Suggestions ports.SuggestionFilter
}

func NewRootCommand(svc Services) (*cobra.Command, error) {
	if svc.Ingest == nil || svc.Knowledge == nil {
		return nil, ErrMissingServices
	}

	root := &cobra.Command{
		Use:   "kbctl",
		Short: "Manage the coaching knowledge base",
		Long: `kbctl ingests coaching documents, runs the extraction and enhancement
pipeline in-process, and queries the resulting knowledge base.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCommand(svc),
		newListCommand(svc),
		newShowCommand(svc),
		newDeleteCommand(svc),
		newClearCommand(svc),
		newSearchCommand(svc),
		newStatsCommand(svc),
	)
	if svc.Suggestions != nil {
		root.AddCommand(newDedupCommand(svc))
	}
	return root, nil
}

func printJSON(cmd *cobra.Command, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
