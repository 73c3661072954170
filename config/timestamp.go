package config

import "time"

// TimestampGenerator lets the engine's poll-duration deadline and
// cycle-summary code depend on an injected clock instead of time.Now, so
// tests can exercise cycle timing deterministically. The status cache's
// TTL is not driven by it.
type TimestampGenerator interface {
	GetTime() time.Time
}

type RealTimestampGenerator struct{}

func (t RealTimestampGenerator) GetTime() time.Time {
	return time.Now()
}

type FixedTimestampGenerator struct {
	Timestamp time.Time
}

func (t FixedTimestampGenerator) GetTime() time.Time {
	return t.Timestamp
}
