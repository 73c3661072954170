package statuscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffbk-dev/autolog-controller/record"
)

func TestIsParentReadyForFramesMiss(t *testing.T) {
	c := New(time.Minute)
	readiness, _ := c.IsParentReadyForFrames("AF0001")
	require.Equal(t, ReadinessMiss, readiness)
}

func TestIsParentReadyForFramesTerminalSuccess(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusComplete}})
	readiness, status := c.IsParentReadyForFrames("AF0001")
	require.Equal(t, ReadinessTerminalSuccess, readiness)
	require.Equal(t, record.StatusComplete, status)
}

func TestIsParentReadyForFramesReady(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusProcessingFrameInfo}})
	readiness, _ := c.IsParentReadyForFrames("AF0001")
	require.Equal(t, ReadinessReady, readiness)
}

func TestIsParentReadyForFramesNotReady(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusCreatingFrames}})
	readiness, _ := c.IsParentReadyForFrames("AF0001")
	require.Equal(t, ReadinessNotReady, readiness)
}

func TestUniqueParentsNeedingCheckExcludesCachedParents(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFrames([]FrameEntry{
		{ID: "AF0001_001", ParentID: "AF0001"},
		{ID: "AF0002_001", ParentID: "AF0002"},
	})
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusScrapingURL}})

	needing := c.UniqueParentsNeedingCheck()
	require.Equal(t, []string{"AF0002"}, needing)
}

func TestBulkUpdateFootageStatusesTracksSavedCalls(t *testing.T) {
	c := New(time.Minute)
	c.BulkUpdateFootageStatuses([]FootageEntry{{ID: "AF0001", Status: record.StatusScrapingURL}}, 4)
	stats := c.Stats()
	require.Equal(t, int64(4), stats.APICallsSaved)

	readiness, _ := c.IsParentReadyForFrames("AF0001")
	require.Equal(t, ReadinessReady, readiness)
}

func TestHitRateReflectsHitsAndMisses(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusScrapingURL}})

	c.GetFootageStatus("AF0001") // hit
	c.GetFootageStatus("missing") // miss

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestResetClearsCacheAndIndex(t *testing.T) {
	c := New(time.Minute)
	c.BulkInsertFootage([]FootageEntry{{ID: "AF0001", Status: record.StatusScrapingURL}})
	c.BulkInsertFrames([]FrameEntry{{ID: "AF0001_001", ParentID: "AF0001"}})

	c.Reset()

	_, found := c.GetFootageStatus("AF0001")
	require.False(t, found)
	require.Empty(t, c.ChildrenOf("AF0001"))
}
