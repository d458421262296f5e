package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/semantic-search/internal/rag"
)

var (
	searchCollection string
	searchTopK       int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a collection and print a generated answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		collection := searchCollection
		if collection == "" {
			collection = a.Config.RAG.DefaultCollection
		}
		return search(cmd.Context(), cmd.OutOrStdout(), a.RAG, collection, strings.Join(args, " "), searchTopK)
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchCollection, "collection", "c", "", "collection to search (default: configured default collection)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default: RAG_TOP_K)")
}

func search(ctx context.Context, out io.Writer, pipeline *rag.Pipeline, collection, query string, k int) error {
	answer, err := pipeline.Answer(ctx, query, collection, k)
	if err != nil {
		return err
	}
	if answer.CollectionMissing {
		fmt.Fprintf(out, "Collection '%s' does not exist. Create and populate it first.\n", collection)
		return nil
	}

	fmt.Fprintf(out, "\nSearch results for: '%s'\n", query)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	for i, hit := range answer.Results {
		fmt.Fprintf(out, "%d. Score: %.4f\n", i+1, hit.Score)
		fmt.Fprintf(out, "   Text: %s\n", orNA(hit.Text))
		fmt.Fprintf(out, "   Category: %s\n", orNA(hit.Category))
		if hit.Source != "" {
			fmt.Fprintf(out, "   Source: %s\n", hit.Source)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Answer:")
	fmt.Fprintln(out, answer.Response)
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
