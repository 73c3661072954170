package batchcheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffbk-dev/autolog-controller/record"
	"github.com/ffbk-dev/autolog-controller/statuscache"
	"github.com/ffbk-dev/autolog-controller/store"
)

type fakeFinder struct {
	calls   int
	records []store.Record
}

func (f *fakeFinder) FindByOr(ctx context.Context, layout, field string, values []string, buffer int) ([]store.Record, error) {
	f.calls++
	return f.records, nil
}

func TestBatchCheckIssuesOneCallForManyIDs(t *testing.T) {
	finder := &fakeFinder{records: []store.Record{
		{RecordKey: "1", Fields: map[string]interface{}{
			record.FootageFieldMapping.ID:     "AF0001",
			record.FootageFieldMapping.Status: string(record.StatusScrapingURL),
		}},
		{RecordKey: "2", Fields: map[string]interface{}{
			record.FootageFieldMapping.ID:     "AF0002",
			record.FootageFieldMapping.Status: string(record.StatusForceResume),
		}},
	}}
	checker := New(finder, "footage")
	cache := statuscache.New(time.Minute)

	found, err := checker.BatchCheck(context.Background(), cache, []string{"AF0001", "AF0002", "AF0003"})
	require.NoError(t, err)
	require.Equal(t, 1, finder.calls)
	require.Len(t, found, 2)

	readiness, _ := cache.IsParentReadyForFrames("AF0001")
	require.Equal(t, statuscache.ReadinessReady, readiness)

	stats := cache.Stats()
	require.Equal(t, int64(2), stats.APICallsSaved)
}

func TestBatchCheckEmptyIDsIsNoop(t *testing.T) {
	finder := &fakeFinder{}
	checker := New(finder, "footage")
	cache := statuscache.New(time.Minute)

	found, err := checker.BatchCheck(context.Background(), cache, nil)
	require.NoError(t, err)
	require.Empty(t, found)
	require.Equal(t, 0, finder.calls)
}
