package config

import "time"

// Scratch directory defaults, mirroring pkg/tempfs's own constants.
const (
	DefaultScratchMaxAge     = 2 * time.Hour
	DefaultScratchSweepEvery = 10 * time.Minute
)

// Rollback store defaults. Retention and create concurrency mirror
// pkg/rollback's own constants; pkg/rollback has no restore-concurrency
// constant.
const (
	DefaultRollbackRetention          = 7 * 24 * time.Hour
	DefaultRollbackCreateConcurrency  = 10
	DefaultRollbackRestoreConcurrency = 10
)

// Streaming pipeline defaults. DefaultChunkSize, DefaultCleanupInterval and
// DefaultCleanupHorizon mirror pkg/streamproc's and pkg/streamops' own
// constants.
const (
	DefaultChunkSize       = 65536
	DefaultParallelism     = 4
	DefaultProcessorCount  = 0 // 0 means "use runtime.GOMAXPROCS(0)".
	DefaultCleanupInterval = 10 * time.Minute
	DefaultCleanupHorizon  = 2 * time.Hour
)

// DefaultMetricsPort is the port the Prometheus /metrics endpoint binds to.
const DefaultMetricsPort = 9090
