package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffbk-dev/autolog-controller/record"
	"github.com/ffbk-dev/autolog-controller/statuscache"
	"github.com/ffbk-dev/autolog-controller/store"
)

type discoveryStore struct {
	fakeStore
	pages map[string][]store.Record // keyed "layout:status"
}

func (s *discoveryStore) FindByStatus(ctx context.Context, layout, statusField, status string, pageSize, safetyCap int, fn store.PageFunc) error {
	recs := s.pages[layout+":"+status]
	if len(recs) == 0 {
		return nil
	}
	return fn(recs)
}

// GetOne is never expected to succeed meaningfully in these discovery-only
// tests; any dispatched task that reaches a re-read falls back to its
// stale snapshot and keeps going rather than panicking on a nil fake.
func (s *discoveryStore) GetOne(ctx context.Context, layout, recordKey string) (store.Record, error) {
	return store.Record{}, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "get one not supported in this fake" }

func newDiscoveryEngine(pages map[string][]store.Record) (*Engine, *fakePatcher) {
	patcher := &fakePatcher{}
	st := &discoveryStore{pages: pages}
	e := newTestEngine(patcher, &fakeRunner{}, &fakeStore{})
	e.Store = st
	return e, patcher
}

// S6: a cycle with nothing left in any non-terminal status reports
// quiescence so the engine stops polling instead of sleeping again.
func TestRunCycleQuiescentWhenNothingNonTerminal(t *testing.T) {
	e, _ := newDiscoveryEngine(map[string][]store.Record{})
	e.BatchChecker = noopBatchChecker{}

	quiescent, err := e.runCycle(context.Background())
	require.NoError(t, err)
	require.True(t, quiescent)
}

// A cycle that discovers a non-terminal footage record is not quiescent.
func TestRunCycleNotQuiescentWithPendingFootage(t *testing.T) {
	pages := map[string][]store.Record{
		"FOOTAGE:" + string(record.StatusPendingFileInfo): {
			{RecordKey: "fk1", Fields: map[string]interface{}{
				record.FootageFieldMapping.ID:     "AF0001",
				record.FootageFieldMapping.Status: string(record.StatusPendingFileInfo),
			}},
		},
	}
	e, _ := newDiscoveryEngine(pages)
	e.BatchChecker = noopBatchChecker{}

	quiescent, err := e.runCycle(context.Background())
	require.NoError(t, err)
	require.False(t, quiescent)
}

// A frame whose cached parent has already reached terminal success is
// excluded from the task list during discovery (§4.6 step 3).
func TestDiscoverDropsFramesWithTerminalParent(t *testing.T) {
	pages := map[string][]store.Record{
		"FRAMES:" + string(record.FrameStatusPendingThumbnail): {
			{RecordKey: "r1", Fields: map[string]interface{}{
				record.FrameFieldMapping.ID:       "AF0001_001",
				record.FrameFieldMapping.ParentID: "AF0001",
				record.FrameFieldMapping.Status:   string(record.FrameStatusPendingThumbnail),
			}},
		},
	}
	e, _ := newDiscoveryEngine(pages)
	// The parent is already known terminal-success from a prior cycle's
	// batch check backfill; discovery itself never pages through terminal
	// footage statuses.
	e.Cache.BulkInsertFootage([]statuscache.FootageEntry{
		{ID: "AF0001", RecordKey: "fk1", Status: record.StatusComplete},
	})

	tasks, seenNonTerminal, err := e.discover(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks, "frame with terminal-success parent must not be dispatched")
	require.False(t, seenNonTerminal)
}

// dispatch must not block past CycleSoftTimeout even if a task would run
// longer; remaining work is left to finish in the background.
func TestDispatchRespectsSoftTimeout(t *testing.T) {
	patcher := &fakePatcher{}
	e := newTestEngine(patcher, &fakeRunner{}, &fakeStore{})
	e.CycleSoftTimeout = 10 * time.Millisecond
	e.WorkerPoolSize = 1

	release := make(chan struct{})
	defer close(release)
	e.Executor.Runner = blockingRunner{release: release}

	slowTask := Task{Kind: KindFootage, Footage: record.Footage{ID: "AF9999", RecordKey: "fk9", Status: record.StatusPendingFileInfo}}

	start := time.Now()
	e.dispatch(context.Background(), []Task{slowTask})
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

// blockingRunner holds every step invocation until release is closed.
type blockingRunner struct{ release chan struct{} }

func (b blockingRunner) Run(ctx context.Context, scriptPath string, args []string, timeout time.Duration) error {
	<-b.release
	return nil
}

type noopBatchChecker struct{}

func (noopBatchChecker) BatchCheck(ctx context.Context, cache *statuscache.Cache, ids []string) (map[string]statuscache.FootageEntry, error) {
	return nil, nil
}
