package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	IdentityCacheHits         uint64
	IdentityCacheMisses       uint64
	AccountsCreated           uint64
	GenerationsSucceeded      uint64
	GenerationsUpstreamFailed uint64
	GenerationsOutOfCredits   uint64
	GenerationsInvalid        uint64
	GenerationDurationCount   uint64
	GenerationDurationTotalNs int64
	CreditsDeducted           uint64
	AdminSets                 uint64
	AdminAdds                 uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	identityCacheHits         uint64
	identityCacheMisses       uint64
	accountsCreated           uint64
	generationsSucceeded      uint64
	generationsUpstreamFailed uint64
	generationsOutOfCredits   uint64
	generationsInvalid        uint64
	generationDurationCount   uint64
	generationDurationTotalNs int64
	creditsDeducted           uint64
	adminSets                 uint64
	adminAdds                 uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		IdentityCacheHits:         atomic.LoadUint64(&m.identityCacheHits),
		IdentityCacheMisses:       atomic.LoadUint64(&m.identityCacheMisses),
		AccountsCreated:           atomic.LoadUint64(&m.accountsCreated),
		GenerationsSucceeded:      atomic.LoadUint64(&m.generationsSucceeded),
		GenerationsUpstreamFailed: atomic.LoadUint64(&m.generationsUpstreamFailed),
		GenerationsOutOfCredits:   atomic.LoadUint64(&m.generationsOutOfCredits),
		GenerationsInvalid:        atomic.LoadUint64(&m.generationsInvalid),
		GenerationDurationCount:   atomic.LoadUint64(&m.generationDurationCount),
		GenerationDurationTotalNs: atomic.LoadInt64(&m.generationDurationTotalNs),
		CreditsDeducted:           atomic.LoadUint64(&m.creditsDeducted),
		AdminSets:                 atomic.LoadUint64(&m.adminSets),
		AdminAdds:                 atomic.LoadUint64(&m.adminAdds),
	}
}

// IncIdentityCacheHit increments the identity cache hit counter.
func (m *InMemoryRecorder) IncIdentityCacheHit() {
	atomic.AddUint64(&m.identityCacheHits, 1)
}

// IncIdentityCacheMiss increments the identity cache miss counter.
func (m *InMemoryRecorder) IncIdentityCacheMiss() {
	atomic.AddUint64(&m.identityCacheMisses, 1)
}

// IncAccountCreated increments the account creation counter.
func (m *InMemoryRecorder) IncAccountCreated() {
	atomic.AddUint64(&m.accountsCreated, 1)
}

// IncGeneration increments the counter for a generation outcome.
func (m *InMemoryRecorder) IncGeneration(outcome string) {
	switch outcome {
	case GenerationSuccess:
		atomic.AddUint64(&m.generationsSucceeded, 1)
	case GenerationUpstreamError:
		atomic.AddUint64(&m.generationsUpstreamFailed, 1)
	case GenerationOutOfCredits:
		atomic.AddUint64(&m.generationsOutOfCredits, 1)
	case GenerationInvalid:
		atomic.AddUint64(&m.generationsInvalid, 1)
	}
}

// ObserveGenerationDuration records how long a generation took end to end.
func (m *InMemoryRecorder) ObserveGenerationDuration(duration time.Duration) {
	atomic.AddUint64(&m.generationDurationCount, 1)
	atomic.AddInt64(&m.generationDurationTotalNs, duration.Nanoseconds())
}

// IncCreditsDeducted increments the deducted credit counter.
func (m *InMemoryRecorder) IncCreditsDeducted() {
	atomic.AddUint64(&m.creditsDeducted, 1)
}

// IncAdminAdjustment increments the counter for an admin credit adjustment.
func (m *InMemoryRecorder) IncAdminAdjustment(kind string) {
	switch kind {
	case "set":
		atomic.AddUint64(&m.adminSets, 1)
	case "add":
		atomic.AddUint64(&m.adminAdds, 1)
	}
}
