package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bull/semantic-search/internal/storage"
)

var vectorSize int

var createCollectionCmd = &cobra.Command{
	Use:   "create-collection <name>",
	Short: "Create a cosine-distance collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		size := vectorSize
		if size <= 0 {
			size = a.Config.Embedding.Dimension
		}
		return createCollection(cmd.Context(), cmd.OutOrStdout(), a.Store, args[0], size)
	},
}

func init() {
	createCollectionCmd.Flags().IntVar(&vectorSize, "vector-size", 0, "vector dimensionality (default: embedding dimension)")
}

// createCollection creates name, reporting an existing collection without failing.
func createCollection(ctx context.Context, out io.Writer, store storage.VectorStore, name string, size int) error {
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}

	err := store.CreateCollection(ctx, name, size)
	if errors.Is(err, storage.ErrCollectionExists) {
		fmt.Fprintf(out, "Collection '%s' already exists.\n", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	fmt.Fprintf(out, "Collection '%s' created successfully!\n", name)
	return nil
}
