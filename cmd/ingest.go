package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/ingest"
	"github.com/leggilab/normascout/internal/scrape"
)

// newIngestCmd creates the 'ingest' subcommand for manual document intake:
// one document from a file or stdin, through the same pipeline scraped
// documents take.
func newIngestCmd() *cobra.Command {
	var (
		title        string
		source       string
		externalID   string
		section      string
		publishedStr string
		replace      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest one document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			content, err := readDocument(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("document content is empty")
			}
			if title == "" {
				title = firstLine(content)
			}
			if title == "" {
				return fmt.Errorf("--title is required when the document has no usable first line")
			}

			published, err := resolvePublished(publishedStr, title)
			if err != nil {
				return err
			}

			store, closeStore, err := buildStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			orch, err := buildOrchestrator(store)
			if err != nil {
				return err
			}

			input := ingest.Input{
				Source:      source,
				ExternalID:  externalID,
				Title:       title,
				Content:     content,
				Section:     section,
				Published:   published,
				Fingerprint: scrape.Fingerprint(title, content, published),
			}

			var result ingest.Result
			if replace {
				result, err = orch.Reingest(ctx, input, true)
			} else {
				result, err = orch.Ingest(ctx, input)
			}
			if err != nil {
				return fmt.Errorf("ingest document: %w", err)
			}

			logger.Info("document ingested",
				zap.String("document_id", result.DocumentID),
				zap.String("tier", result.Tier.String()),
				zap.String("strategy", string(result.Strategy)),
				zap.Strings("topics", result.Topics),
				zap.Int("records", result.Records),
				zap.Int("articles", result.Articles),
				zap.Int("chunks", result.Chunks),
				zap.Int("attachments", result.Attachments),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "document title (default: first line of the content)")
	cmd.Flags().StringVar(&source, "source", "manual", "source identifier recorded with the document")
	cmd.Flags().StringVar(&externalID, "external-id", "", "external identifier, e.g. the act number")
	cmd.Flags().StringVar(&section, "section", "", "section label recorded with the document")
	cmd.Flags().StringVar(&publishedStr, "published", "", "publication date (YYYY-MM-DD; default: parsed from the title, else today)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete previously stored records with a matching title first")
	return cmd
}

func readDocument(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolvePublished(flagValue, title string) (time.Time, error) {
	if flagValue != "" {
		published, err := time.Parse("2006-01-02", flagValue)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse --published: %w", err)
		}
		return published, nil
	}
	if published, ok := scrape.ParseItalianDate(title); ok {
		return published, nil
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}
