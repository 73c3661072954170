package config

var Version string

// Clock is used so that tests can generate fixed timestamps instead of
// depending on wall-clock time.
var Clock TimestampGenerator = RealTimestampGenerator{}

const (
	DefaultPollDuration     = 3600
	DefaultPollInterval     = 30
	DefaultWorkerPoolSize   = 5
	DefaultCycleSoftTimeout = 30
	DefaultRequestTimeout   = 30
	DefaultStepTimeout      = 300
	DefaultFrameStepTimeout = 1800

	// Pagination safety caps, per status, per cycle (§4.1).
	MaxFootagePagesPerStatus = 10000
	MaxFramePagesPerStatus   = 50000

	FootagePageSize = 500
	FramePageSize   = 1000

	// Chaining caps (§4.4).
	MaxFootageChainSteps = 5
	MaxFrameChainSteps   = 4
)
