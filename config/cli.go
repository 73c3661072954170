package config

import "time"

// Cli holds every flag/env-recognized configuration option from the
// controller's external interface. Populated by cmd/autologctl via
// peterbourgon/ff against a flag.FlagSet.
type Cli struct {
	StoreBaseURL   string
	StoreUsername  string
	StorePassword  string
	StoreLayoutFtg string
	StoreLayoutFr  string

	PollDuration     time.Duration
	PollInterval     time.Duration
	WorkerPoolSize   int
	CycleSoftTimeout time.Duration
	StatusCacheTTL   time.Duration

	StepScriptDir string

	RequestTimeout time.Duration
	StepTimeout    time.Duration
	FrameTimeout   time.Duration

	MetricsAddr               string
	MetricsDBConnectionString string
	PprofPort                 int
}
