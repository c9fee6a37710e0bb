// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Generation outcome labels.
const (
	GenerationSuccess       = "success"
	GenerationUpstreamError = "upstream_error"
	GenerationOutOfCredits  = "out_of_credits"
	GenerationInvalid       = "invalid_request"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Identity resolution metrics
	IncIdentityCacheHit()
	IncIdentityCacheMiss()

	// Account metrics
	IncAccountCreated()

	// Generation metrics
	IncGeneration(outcome string) // one of the Generation* labels
	ObserveGenerationDuration(duration time.Duration)
	IncCreditsDeducted()

	// Admin metrics
	IncAdminAdjustment(kind string) // "set" or "add"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
