package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func newDedupCommand(svc Services) *cobra.Command {
	var (
		streamID string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Filter duplicate coaching suggestions read from stdin",
		Long: `Reads one suggestion per line from stdin and prints the ones that are
not duplicates of a recent accepted suggestion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				verdict := svc.Suggestions.Submit(streamID, domain.Suggestion{
					ID:        uuid.NewString(),
					StreamID:  streamID,
					Text:      text,
					Timestamp: time.Now().UTC(),
				})
				switch {
				case verdict.Accepted:
					cmd.Println(text)
				case verbose:
					cmd.PrintErrf("suppressed (%s): %s\n", verdict.Reason, text)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read suggestions: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&streamID, "stream", "cli", "stream id the suggestions belong to")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report suppressed suggestions on stderr")
	return cmd
}
