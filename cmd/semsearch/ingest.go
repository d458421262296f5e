package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
)

var (
	ingestCollection string
	ingestCategory   string
)

var ingestPDFCmd = &cobra.Command{
	Use:   "ingest-pdf <file.pdf>...",
	Short: "Extract, chunk, and store PDF files",
	Long: `Extracts the text of each PDF with pdftotext, splits it into fixed-size
chunks, and stores them in batches. A file that fails is reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PDF.CheckAvailable(); err != nil {
			return fmt.Errorf("%w\n%s", err, pdf.InstallInstructions())
		}
		collection := ingestCollection
		if collection == "" {
			collection = a.Config.RAG.DefaultCollection
		}
		return ingestPDFs(cmd.Context(), cmd.OutOrStdout(), a.PDF, a.Ingest, collection, ingestCategory, args)
	},
}

func init() {
	ingestPDFCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default: configured default collection)")
	ingestPDFCmd.Flags().StringVar(&ingestCategory, "category", "", "category stored with every chunk")
}

func ingestPDFs(
	ctx context.Context,
	out io.Writer,
	extractor *pdf.Extractor,
	ingester *ingest.Pipeline,
	collection, category string,
	paths []string,
) error {
	start := time.Now()
	docs := make([]ingest.Document, 0, len(paths))
	var skipped []ingest.FailedDoc

	fmt.Fprintf(out, "Extracting %d file(s)...\n", len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if !pdf.IsPDFFilename(name) {
			skipped = append(skipped, ingest.FailedDoc{Source: name, Reason: pdf.ErrNotPDF.Error()})
			continue
		}
		text, err := extractFile(ctx, extractor, path)
		if err != nil {
			skipped = append(skipped, ingest.FailedDoc{Source: name, Reason: err.Error()})
			continue
		}
		docs = append(docs, ingest.Document{Source: name, Category: category, Text: text})
	}

	result := &ingest.BatchResult{}
	if len(docs) > 0 {
		var err error
		result, err = ingester.IngestAll(ctx, collection, docs)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	}
	result.FailedDocs = append(skipped, result.FailedDocs...)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ingestion complete!")
	fmt.Fprintf(out, "  Collection: %s\n", collection)
	fmt.Fprintf(out, "  Documents: %d/%d\n", result.SuccessfulDocs, len(paths))
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(out, "  Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Source, failed.Reason)
		}
	}
	return nil
}

func extractFile(ctx context.Context, extractor *pdf.Extractor, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return extractor.Extract(ctx, f)
}
