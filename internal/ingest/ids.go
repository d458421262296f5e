package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/bull/semantic-search/internal/config"
	"github.com/bull/semantic-search/internal/storage"
)

// DefaultScanLimit bounds the ID scan of the sequential strategy.
const DefaultScanLimit = 100

// IDAllocator hands out point IDs for one ingestion call.
type IDAllocator interface {
	Allocate(ctx context.Context, collection string, n int) ([]string, error)
}

// UUIDAllocator assigns a fresh random UUID per chunk. Safe under concurrent writers.
type UUIDAllocator struct{}

func (UUIDAllocator) Allocate(ctx context.Context, collection string, n int) ([]string, error) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.New().String()
	}
	return ids, nil
}

// SequentialAllocator scans up to ScanLimit existing points, takes the largest
// numeric ID M, and returns M+1..M+n. Non-numeric IDs are ignored.
//
// IDs beyond the scan window are not seen, and two concurrent ingestions can
// read the same maximum and collide. UUIDAllocator has neither problem.
type SequentialAllocator struct {
	Store     storage.VectorStore
	ScanLimit int
}

func (a SequentialAllocator) Allocate(ctx context.Context, collection string, n int) ([]string, error) {
	limit := a.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	existing, err := a.Store.ScanPointIDs(ctx, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("scan existing ids: %w", err)
	}

	var max uint64
	for _, id := range existing {
		if v, ok := storage.NumericID(id); ok && v > max {
			max = v
		}
	}

	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.FormatUint(max+uint64(i)+1, 10)
	}
	return ids, nil
}

// NewIDAllocator returns the allocator for a config.IDStrategy* value.
func NewIDAllocator(strategy string, store storage.VectorStore, scanLimit int) IDAllocator {
	if strategy == config.IDStrategySequential {
		return SequentialAllocator{Store: store, ScanLimit: scanLimit}
	}
	return UUIDAllocator{}
}
