// Package batchcheck implements C3: collapsing N parent-status lookups
// into one OR-query against the store on cache miss.
//
// Grounded on utils/batch_status_checker.py's BatchStatusChecker.
package batchcheck

import (
	"context"

	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/ffbk-dev/autolog-controller/record"
	"github.com/ffbk-dev/autolog-controller/statuscache"
	"github.com/ffbk-dev/autolog-controller/store"
)

// StoreFinder is the subset of the store client this package needs,
// narrowed to keep the dependency small and the package easy to test
// against a fake.
type StoreFinder interface {
	FindByOr(ctx context.Context, layout, field string, values []string, buffer int) ([]store.Record, error)
}

const resultBuffer = 10

// Checker issues batched OR-finds for footage parent statuses.
type Checker struct {
	finder StoreFinder
	layout string
}

func New(finder StoreFinder, layout string) *Checker {
	return &Checker{finder: finder, layout: layout}
}

// BatchCheck issues one OR find for every id in ids, merges the result
// into cache via BulkUpdateFootageStatuses, and returns the map of
// resolved entries. Missing ids are logged, never treated as an error —
// they simply remain uncached until a future cycle's discovery or batch
// check picks them up.
func (c *Checker) BatchCheck(ctx context.Context, cache *statuscache.Cache, ids []string) (map[string]statuscache.FootageEntry, error) {
	if len(ids) == 0 {
		return map[string]statuscache.FootageEntry{}, nil
	}

	records, err := c.finder.FindByOr(ctx, c.layout, record.FootageFieldMapping.ID, ids, resultBuffer)
	if err != nil {
		return nil, err
	}

	found := make(map[string]statuscache.FootageEntry, len(records))
	entries := make([]statuscache.FootageEntry, 0, len(records))
	for _, r := range records {
		decoded := record.DecodeFootage(r.RecordKey, r.Fields)
		if decoded.ID == "" {
			continue
		}
		entry := statuscache.FootageEntry{
			ID:        decoded.ID,
			RecordKey: decoded.RecordKey,
			Status:    decoded.Status,
			Fields:    r.Fields,
		}
		found[decoded.ID] = entry
		entries = append(entries, entry)
	}

	apiCallsSaved := len(ids) - 1
	if apiCallsSaved < 0 {
		apiCallsSaved = 0
	}
	cache.BulkUpdateFootageStatuses(entries, apiCallsSaved)

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		log.LogNoRecordID("batch status check: some parents not found", "missing", missing)
	}

	return found, nil
}
