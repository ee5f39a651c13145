package indicators

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Catalog is the registry of screening indicators. Registration order is
// preserved for uniform iteration during batch syncs.
type Catalog struct {
	mu         sync.RWMutex
	indicators map[string]Indicator
	order      []string
	store      *SnapshotStore
}

// NewCatalog creates an empty indicator catalog over a snapshot store
func NewCatalog(store *SnapshotStore) *Catalog {
	return &Catalog{
		indicators: make(map[string]Indicator),
		store:      store,
	}
}

// Register adds an indicator to the catalog. Re-registering a code replaces
// the previous indicator.
func (c *Catalog) Register(ind Indicator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indicators[ind.Code()]; !exists {
		c.order = append(c.order, ind.Code())
	}
	c.indicators[ind.Code()] = ind
}

// Get returns the registered indicator for a code
func (c *Catalog) Get(code string) (Indicator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ind, ok := c.indicators[code]
	return ind, ok
}

// Codes returns the registered indicator codes in registration order
func (c *Catalog) Codes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, len(c.order))
	copy(codes, c.order)
	return codes
}

// Sync fetches, normalizes and stores one indicator's snapshot, returning
// the number of rows written
func (c *Catalog) Sync(ctx context.Context, code string) (int, error) {
	ind, ok := c.Get(code)
	if !ok {
		return 0, fmt.Errorf("unknown indicator: %s", code)
	}

	raw, err := ind.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch indicator %s: %w", code, err)
	}
	rows, err := ind.Normalize(raw, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to normalize indicator %s: %w", code, err)
	}

	written, err := c.store.Replace(ctx, code, rows)
	if err != nil {
		return 0, err
	}
	log.Printf("Indicator %s synced: %d rows", code, written)
	return written, nil
}

// SyncAllResult holds per-run counts of a full catalog sync.
type SyncAllResult struct {
	Synced      int               `json:"synced"`
	Failed      int               `json:"failed"`
	RowsWritten int               `json:"rows_written"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// SyncAll syncs every registered indicator. Per-indicator failures are
// counted and skipped; the run only errors when every indicator fails.
func (c *Catalog) SyncAll(ctx context.Context) (SyncAllResult, error) {
	result := SyncAllResult{Errors: make(map[string]string)}
	codes := c.Codes()
	for _, code := range codes {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		written, err := c.Sync(ctx, code)
		if err != nil {
			log.Printf("Indicator sync failed for %s: %v", code, err)
			result.Failed++
			result.Errors[code] = err.Error()
			continue
		}
		result.Synced++
		result.RowsWritten += written
	}

	log.Printf("Indicator sync completed: synced=%d, failed=%d, rows=%d",
		result.Synced, result.Failed, result.RowsWritten)

	if len(codes) > 0 && result.Failed == len(codes) {
		return result, fmt.Errorf("indicator sync failed for all %d indicators", len(codes))
	}
	return result, nil
}
