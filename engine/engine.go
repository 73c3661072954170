// Package engine implements C6: the outer polling loop that discovers
// processable records, dispatches them to a bounded worker pool, chains
// consecutive steps per record, and decides when the fleet has reached
// quiescence.
//
// Grounded on footage_autolog.py's process_footage_task/process_frame_task
// control flow and its outer polling loop, with the worker pool adapted
// from main.go's errgroup-supervised goroutine pattern.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ffbk-dev/autolog-controller/config"
	ctlerrors "github.com/ffbk-dev/autolog-controller/errors"
	"github.com/ffbk-dev/autolog-controller/executor"
	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/ffbk-dev/autolog-controller/metrics"
	"github.com/ffbk-dev/autolog-controller/metricssink"
	"github.com/ffbk-dev/autolog-controller/record"
	"github.com/ffbk-dev/autolog-controller/statuscache"
	"github.com/ffbk-dev/autolog-controller/store"
)

// StoreClient is the subset of C1 the engine drives discovery and
// single-record reads through.
type StoreClient interface {
	FindByStatus(ctx context.Context, layout, statusField, status string, pageSize, safetyCap int, fn store.PageFunc) error
	GetOne(ctx context.Context, layout, recordKey string) (store.Record, error)
	Token(ctx context.Context) (string, error)
}

// BatchChecker is C3's interface as consumed by the engine.
type BatchChecker interface {
	BatchCheck(ctx context.Context, cache *statuscache.Cache, ids []string) (map[string]statuscache.FootageEntry, error)
}

// CycleMetricsSink persists one row of cycle-level statistics, the way
// metricssink.Postgres does. Optional: a nil sink (or a disabled
// metricssink.Postgres) simply records nothing.
type CycleMetricsSink interface {
	Record(ctx context.Context, stats metricssink.CycleStats) error
}

// QualityGate evaluates the freshly re-read footage record after step 4
// and reports whether scraped metadata is good enough to proceed to frame
// processing. Deterministic given the record snapshot (§9); scoring rules
// are out of scope for the controller.
type QualityGate func(record.Footage) bool

// AlwaysGoodQuality is the default gate used when no scoring predicate is
// injected: every record passes. Real deployments inject their own.
func AlwaysGoodQuality(record.Footage) bool { return true }

// Engine is C6: the polling loop.
type Engine struct {
	Store        StoreClient
	Cache        *statuscache.Cache
	BatchChecker BatchChecker
	Executor     *executor.Executor
	Metrics      *metrics.ControllerMetrics
	MetricsSink  CycleMetricsSink
	QualityGate  QualityGate

	LayoutFootage string
	LayoutFrame   string

	PollDuration     time.Duration
	PollInterval     time.Duration
	CycleSoftTimeout time.Duration
	WorkerPoolSize   int

	// per-cycle dedup state for "parent still waiting" log lines,
	// keyed by "frame_id:parent_id:status".
	mu          sync.Mutex
	loggedWaits map[string]bool

	// per-cycle outcome counters (successful step executions and failed
	// tasks), read by the cycle summary and the metrics sink at the end of
	// each cycle and reset at the start of the next.
	cycleSucceeded int64
	cycleFailed    int64
}

func New(deps Engine) *Engine {
	e := deps
	if e.QualityGate == nil {
		e.QualityGate = AlwaysGoodQuality
	}
	e.loggedWaits = map[string]bool{}
	return &e
}

// Run drives cycles until poll_duration elapses, the context is canceled,
// or the fleet reaches quiescence.
func (e *Engine) Run(ctx context.Context) error {
	deadline := config.Clock.GetTime().Add(e.PollDuration)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if config.Clock.GetTime().After(deadline) {
			log.LogNoRecordID("poll duration elapsed; stopping")
			return nil
		}

		quiescent, err := e.runCycle(ctx)
		if err != nil {
			log.LogNoRecordID("cycle failed", "err", err.Error())
		}
		if quiescent {
			log.LogNoRecordID("fleet quiescent; exiting before next sleep")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.PollInterval):
		}
	}
}

// runCycle executes one full discover/dispatch/reconcile/quiesce pass and
// reports whether the fleet was observed fully terminal.
func (e *Engine) runCycle(ctx context.Context) (quiescent bool, err error) {
	start := config.Clock.GetTime()
	cycleID := uuid.NewString()

	e.Cache.ClearExpired()
	e.mu.Lock()
	e.loggedWaits = map[string]bool{}
	e.mu.Unlock()
	atomic.StoreInt64(&e.cycleSucceeded, 0)
	atomic.StoreInt64(&e.cycleFailed, 0)

	tasks, seenNonTerminal, discErr := e.discover(ctx)
	if discErr != nil {
		log.LogNoRecordID("discovery error", "cycle_id", cycleID, "err", discErr.Error())
	}

	for i := range tasks {
		tasks[i].CorrelationID = uuid.NewString()
	}

	e.dispatch(ctx, tasks)

	if parents := e.Cache.UniqueParentsNeedingCheck(); len(parents) > 0 {
		if _, err := e.BatchChecker.BatchCheck(ctx, e.Cache, parents); err != nil {
			log.LogNoRecordID("batch status reconciliation failed", "cycle_id", cycleID, "err", err.Error())
		}
	}

	stats := e.Cache.Stats()
	log.LogNoRecordID("cycle summary",
		"cycle_id", cycleID,
		"duration_sec", config.Clock.GetTime().Sub(start).Seconds(),
		"tasks", len(tasks),
		"succeeded", atomic.LoadInt64(&e.cycleSucceeded),
		"failed", atomic.LoadInt64(&e.cycleFailed),
		"cache_hit_rate", stats.HitRate,
		"api_calls_saved", stats.APICallsSaved,
	)
	if e.Metrics != nil {
		e.Metrics.CycleDurationSec.Observe(config.Clock.GetTime().Sub(start).Seconds())
		for _, t := range tasks {
			e.Metrics.TasksSeen.WithLabelValues(t.kindLabel(), t.statusLabel()).Inc()
		}
		e.Metrics.CacheHits.Add(float64(stats.Hits))
		e.Metrics.CacheMisses.Add(float64(stats.Misses))
		e.Metrics.APICallsSaved.Add(float64(stats.APICallsSaved))
	}
	e.Cache.ResetStats()

	if e.MetricsSink != nil {
		if err := e.MetricsSink.Record(ctx, metricssink.CycleStats{
			FinishedAt:     config.Clock.GetTime().Unix(),
			DurationSec:    config.Clock.GetTime().Sub(start).Seconds(),
			TasksSeen:      len(tasks),
			TasksSucceeded: int(atomic.LoadInt64(&e.cycleSucceeded)),
			TasksFailed:    int(atomic.LoadInt64(&e.cycleFailed)),
			CacheHitRate:   stats.HitRate,
			APICallsSaved:  stats.APICallsSaved,
		}); err != nil {
			log.LogNoRecordID("cycle metrics sink write failed", "cycle_id", cycleID, "err", err.Error())
		}
	}

	return !seenNonTerminal, nil
}

// discover pages through every processing status for both entity kinds,
// seeding the cache and building the cycle's task list. For frames, any
// whose cached parent is already terminal-success is dropped before
// dispatch (invariant 2 extension, §4.6 step 3).
func (e *Engine) discover(ctx context.Context) ([]Task, bool, error) {
	var tasks []Task
	seenNonTerminal := false

	var footageEntries []statuscache.FootageEntry
	var footageRecords []record.Footage
	for _, status := range record.FootageProcessingStatuses {
		err := e.Store.FindByStatus(ctx, e.LayoutFootage, record.FootageFieldMapping.Status, string(status),
			config.FootagePageSize, config.MaxFootagePagesPerStatus, func(recs []store.Record) error {
				for _, r := range recs {
					f := record.DecodeFootage(r.RecordKey, r.Fields)
					if f.ID == "" {
						continue
					}
					footageRecords = append(footageRecords, f)
					footageEntries = append(footageEntries, statuscache.FootageEntry{
						ID: f.ID, RecordKey: f.RecordKey, Status: f.Status, Fields: r.Fields,
					})
				}
				return nil
			})
		if err != nil {
			log.LogNoRecordID("footage discovery failed", "status", string(status), "err", err.Error())
		}
	}
	e.Cache.BulkInsertFootage(footageEntries)
	for _, f := range footageRecords {
		if f.Status.IsTerminal() {
			continue
		}
		seenNonTerminal = true
		tasks = append(tasks, Task{Kind: KindFootage, Footage: f})
	}

	var frameEntries []statuscache.FrameEntry
	var frameRecords []record.Frame
	for _, status := range record.FrameProcessingStatuses {
		err := e.Store.FindByStatus(ctx, e.LayoutFrame, record.FrameFieldMapping.Status, string(status),
			config.FramePageSize, config.MaxFramePagesPerStatus, func(recs []store.Record) error {
				for _, r := range recs {
					fr := record.DecodeFrame(r.RecordKey, r.Fields)
					if fr.ID == "" {
						continue
					}
					frameRecords = append(frameRecords, fr)
					frameEntries = append(frameEntries, statuscache.FrameEntry{
						ID: fr.ID, ParentID: fr.ParentID, RecordKey: fr.RecordKey, Status: fr.Status, Caption: fr.Caption,
					})
				}
				return nil
			})
		if err != nil {
			log.LogNoRecordID("frame discovery failed", "status", string(status), "err", err.Error())
		}
	}
	e.Cache.BulkInsertFrames(frameEntries)

	for _, fr := range frameRecords {
		if fr.Status.IsTerminal() {
			continue
		}
		if readiness, _ := e.Cache.IsParentReadyForFrames(fr.ParentID); readiness == statuscache.ReadinessTerminalSuccess {
			continue
		}
		seenNonTerminal = true
		tasks = append(tasks, Task{Kind: KindFrame, Frame: fr})
	}

	return tasks, seenNonTerminal, nil
}

// dispatch submits every task to a bounded worker pool and waits up to
// CycleSoftTimeout for completion; tasks still running past the soft
// timeout are left to finish in the background against ctx rather than
// blocking the outer cycle (§4.6 step 4, §5).
func (e *Engine) dispatch(ctx context.Context, tasks []Task) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.WorkerPoolSize)

	for _, t := range tasks {
		t := t
		if e.Metrics != nil {
			e.Metrics.RecordsInFlight.Inc()
		}
		g.Go(func() error {
			defer func() {
				if e.Metrics != nil {
					e.Metrics.RecordsInFlight.Dec()
				}
			}()
			e.runTask(gctx, t)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.CycleSoftTimeout):
		log.LogNoRecordID("cycle soft timeout reached; remaining tasks detach to background")
	}
}

func (e *Engine) runTask(ctx context.Context, t Task) {
	switch t.Kind {
	case KindFootage:
		e.runFootageTask(ctx, t.Footage, t.CorrelationID)
	case KindFrame:
		e.runFrameTask(ctx, t.Frame, t.CorrelationID)
	}
}

func (e *Engine) token(ctx context.Context) string {
	tok, err := e.Store.Token(ctx)
	if err != nil {
		log.LogNoRecordID("could not obtain auth token for step invocation", "err", err.Error())
		return ""
	}
	return tok
}

func (e *Engine) markStepSuccess(kind string) {
	atomic.AddInt64(&e.cycleSucceeded, 1)
	if e.Metrics == nil {
		return
	}
	e.Metrics.TasksSucceeded.WithLabelValues(kind).Inc()
}

func (e *Engine) markFailure(err error) {
	atomic.AddInt64(&e.cycleFailed, 1)
	reason := "error"
	switch {
	case ctlerrors.IsStepTimeout(err):
		reason = "timeout"
	case ctlerrors.IsStepFailure(err):
		reason = "step_failure"
	case ctlerrors.IsFatalConfig(err):
		reason = "fatal_config"
		log.LogNoRecordID("fatal config error in task", "err", err.Error())
	}
	if e.Metrics != nil {
		e.Metrics.TasksFailed.WithLabelValues("task", reason).Inc()
	}
}
