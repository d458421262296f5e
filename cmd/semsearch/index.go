package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/storage"
)

var indexCmd = &cobra.Command{
	Use:   "index [collection]",
	Short: "Interactively add documents to a collection",
	Long: `Prompts for text and a category and stores each entry as one point.
An empty text line finishes. A missing collection can be created on the spot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s := &indexSession{
			in:          bufio.NewScanner(cmd.InOrStdin()),
			out:         cmd.OutOrStdout(),
			store:       a.Store,
			ingester:    a.Ingest,
			defaultSize: a.Config.Embedding.Dimension,
		}
		var collection string
		if len(args) > 0 {
			collection = args[0]
		}
		return s.run(cmd.Context(), collection)
	},
}

type indexSession struct {
	in          *bufio.Scanner
	out         io.Writer
	store       storage.VectorStore
	ingester    *ingest.Pipeline
	defaultSize int
}

// prompt prints label and returns the next trimmed input line. ok is false at EOF.
func (s *indexSession) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *indexSession) run(ctx context.Context, collection string) error {
	if collection == "" {
		collection, _ = s.prompt("Enter the Qdrant collection name: ")
	}
	if collection == "" {
		return errors.New("collection name is required")
	}

	ready, err := s.ensureCollection(ctx, collection)
	if err != nil || !ready {
		return err
	}

	fmt.Fprintln(s.out, "\nAdd entries to your vector database. Press Enter with empty text to finish.")
	for {
		text, ok := s.prompt("Enter text to add (or just Enter to finish): ")
		if !ok || text == "" {
			fmt.Fprintln(s.out, "Done.")
			return nil
		}
		category, _ := s.prompt("Enter category: ")
		if category == "" {
			fmt.Fprintln(s.out, "Category is required. Skipping entry.")
			continue
		}

		result, err := s.ingester.AddDocument(ctx, collection, text, category)
		if err != nil {
			return fmt.Errorf("add entry: %w", err)
		}
		fmt.Fprintf(s.out, "Added entry with ID %s to collection '%s'.\n", result.IDs[0], collection)
	}
}

// ensureCollection offers to create a missing collection. ready is false when
// the user declines.
func (s *indexSession) ensureCollection(ctx context.Context, collection string) (bool, error) {
	exists, err := s.store.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	if exists {
		fmt.Fprintf(s.out, "Collection '%s' already exists.\n", collection)
		return true, nil
	}

	answer, _ := s.prompt(fmt.Sprintf("Collection '%s' does not exist. Create it? (y/n): ", collection))
	if !strings.EqualFold(answer, "y") {
		fmt.Fprintln(s.out, "Exiting.")
		return false, nil
	}

	size := s.defaultSize
	if raw, _ := s.prompt(fmt.Sprintf("Enter vector size (default %d): ", s.defaultSize)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return false, fmt.Errorf("invalid vector size %q", raw)
		}
		size = n
	}
	if err := s.store.CreateCollection(ctx, collection, size); err != nil {
		return false, fmt.Errorf("create collection: %w", err)
	}
	fmt.Fprintf(s.out, "Collection '%s' created.\n", collection)
	return true, nil
}
