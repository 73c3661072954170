// Package metricssink implements the optional cycle-metrics Postgres sink:
// one row per completed polling cycle, for operators who want history
// beyond what Prometheus's default retention keeps.
//
// Grounded on pipeline/coordinator.go's sendDBMetrics, which writes one
// row per finished VOD job to "vod_completed" the same way, gated the
// same way on a nil *sql.DB.
package metricssink

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// CycleStats is the subset of one cycle's outcome recorded to Postgres.
type CycleStats struct {
	FinishedAt     int64
	DurationSec    float64
	TasksSeen      int
	TasksSucceeded int
	TasksFailed    int
	CacheHitRate   float64
	APICallsSaved  int64
}

// Postgres records one row per completed cycle to the "cycle_completed"
// table. A nil *sql.DB disables it entirely, exactly as
// Coordinator.MetricsDB == nil short-circuits sendDBMetrics.
type Postgres struct {
	DB *sql.DB
}

// Open opens a Postgres connection for the sink, or returns a disabled
// Postgres{} (nil DB) when connString is empty.
func Open(connString string) (*Postgres, error) {
	if connString == "" {
		return &Postgres{}, nil
	}
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

const insertCycle = `insert into "cycle_completed" (
	"finished_at",
	"duration_sec",
	"tasks_seen",
	"tasks_succeeded",
	"tasks_failed",
	"cache_hit_rate",
	"api_calls_saved"
) values ($1, $2, $3, $4, $5, $6, $7)`

// Record writes one row for a completed cycle. A no-op on a disabled sink.
func (p *Postgres) Record(ctx context.Context, stats CycleStats) error {
	if p == nil || p.DB == nil {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, insertCycle,
		stats.FinishedAt,
		stats.DurationSec,
		stats.TasksSeen,
		stats.TasksSucceeded,
		stats.TasksFailed,
		stats.CacheHitRate,
		stats.APICallsSaved,
	)
	return err
}

// Close closes the underlying connection, if any.
func (p *Postgres) Close() error {
	if p == nil || p.DB == nil {
		return nil
	}
	return p.DB.Close()
}
