package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func newIngestCommand(svc Services) *cobra.Command {
	var (
		coreProblem   string
		criticalTerms string
		highTerms     string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]...",
		Short: "Ingest and process documents",
		Long: `Decodes each file, stores it and runs the pipeline before returning.
A file with the same name as an existing document replaces it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority := domain.PriorityContext{
				CriticalTerms:     config.SplitCSV(criticalTerms),
				HighPriorityTerms: config.SplitCSV(highTerms),
				CoreProblem:       strings.TrimSpace(coreProblem),
			}
			var pctx *domain.PriorityContext
			if !priority.IsZero() {
				pctx = &priority
			}

			for _, path := range args {
				if err := ingestFile(cmd, svc, path, pctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&coreProblem, "core-problem", "", "core problem the client is working on")
	cmd.Flags().StringVar(&criticalTerms, "critical-terms", "", "comma-separated terms that mark items CRITICAL")
	cmd.Flags().StringVar(&highTerms, "high-terms", "", "comma-separated terms that mark items HIGH")
	return cmd
}

func ingestFile(cmd *cobra.Command, svc Services, path string, priority *domain.PriorityContext) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	doc, err := svc.Ingest.Upload(cmd.Context(), filepath.Base(path), mimeType, f, priority)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	status := domain.StatusUploaded
	if _, run, err := svc.Knowledge.GetDocument(cmd.Context(), doc.ID); err == nil && run != nil {
		status = run.Status
		if run.Note != "" {
			cmd.Printf("%s  %s  %s (%s)\n", doc.ID, doc.Filename, status, run.Note)
			return nil
		}
		if run.Error != "" {
			cmd.Printf("%s  %s  %s: %s\n", doc.ID, doc.Filename, status, run.Error)
			return nil
		}
	}
	cmd.Printf("%s  %s  %s\n", doc.ID, doc.Filename, status)
	return nil
}

func newListCommand(svc Services) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := svc.Knowledge.ListDocuments(cmd.Context())
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			if asJSON {
				return printJSON(cmd, docs)
			}
			if len(docs) == 0 {
				cmd.Println("No documents.")
				return nil
			}
			for _, doc := range docs {
				cmd.Printf("%s  %s  %s\n", doc.ID, doc.CreatedAt.Format("2006-01-02 15:04:05"), doc.Filename)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newShowCommand(svc Services) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [document-id]",
		Short: "Show a document and its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, run, err := svc.Knowledge.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("show document: %w", err)
			}
			analysis, err := svc.Knowledge.GetAnalysis(cmd.Context(), doc.ID)
			if err != nil && !domain.IsKind(err, domain.ErrDocumentNotFound) {
				return fmt.Errorf("show analysis: %w", err)
			}
			if asJSON {
				return printJSON(cmd, map[string]any{"document": doc, "run": run, "analysis": analysis})
			}

			cmd.Printf("ID:       %s\n", doc.ID)
			cmd.Printf("File:     %s\n", doc.Filename)
			cmd.Printf("Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
			if run != nil {
				cmd.Printf("Status:   %s\n", run.Status)
				if run.Error != "" {
					cmd.Printf("Error:    %s\n", run.Error)
				}
			}
			if analysis == nil {
				cmd.Println("No analysis yet.")
				return nil
			}
			if analysis.Summary != "" {
				cmd.Printf("Summary:  %s\n", analysis.Summary)
			}
			for _, t := range domain.ItemTypes {
				items := analysis.ItemsOf(t)
				if len(items) == 0 {
					continue
				}
				cmd.Printf("\n%s (%d)\n", t, len(items))
				for _, item := range items {
					cmd.Printf("  - %s\n", item.Text)
				}
			}
			if analysis.EnhancementNote != "" {
				cmd.Printf("\n%s\n", analysis.EnhancementNote)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newDeleteCommand(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Remove a document and everything derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := svc.Knowledge.RemoveDocument(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete document: %w", err)
			}
			if !removed {
				cmd.Printf("Nothing to remove for %s.\n", args[0])
				return nil
			}
			cmd.Printf("Removed %s.\n", args[0])
			return nil
		},
	}
}

func newClearCommand(svc Services) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document, analysis and run from the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return fmt.Errorf("clear is destructive; rerun with --yes")
			}
			removed, err := svc.Knowledge.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear knowledge base: %w", err)
			}
			cmd.Printf("Cleared %d documents.\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm wiping the knowledge base")
	return cmd
}
