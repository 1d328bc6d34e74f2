package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(svc Services) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search extracted knowledge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := svc.Knowledge.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd, hits)
			}
			if len(hits) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			cmd.Println("Results:")
			for i, hit := range hits {
				cmd.Printf("  [%d] %s (%.2f)\n", i+1, hit.Text, hit.Score)
				cmd.Printf("      %s in %s\n", hit.Type, hit.Filename)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func newStatsCommand(svc Services) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := svc.Knowledge.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if asJSON {
				return printJSON(cmd, stats)
			}
			cmd.Printf("Documents:       %d\n", stats.TotalDocuments)
			cmd.Printf("Items:           %d\n", stats.TotalItems)
			cmd.Printf("Collection size: %d\n", stats.CollectionSize)
			cmd.Printf("Last updated:    %s\n", stats.LastUpdated)
			cmd.Printf("Health:          %s\n", stats.HealthStatus)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
