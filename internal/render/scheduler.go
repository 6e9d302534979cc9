package render

import "time"

// Mode is a refresh decision.
type Mode int

const (
	// ModeFull redraws everything and clears ghosting.
	ModeFull Mode = iota
	// ModePartial redraws only the dynamic zones on top of the retained
	// frame.
	ModePartial
)

// String returns "full" or "partial".
func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "partial"
}

// Scheduler decides between full and partial refreshes, trading latency
// against ghost accumulation over an unbounded run. A full refresh is
// forced when too much time has passed since the last one or after too
// many consecutive partial updates; the two triggers are independent ORs.
//
// The zero value (no full refresh recorded yet) always decides full.
type Scheduler struct {
	fullEvery   time.Duration
	maxPartials int

	lastFull time.Time
	partials int
}

// NewScheduler creates a scheduler with the given policy.
func NewScheduler(fullEvery time.Duration, maxPartials int) *Scheduler {
	return &Scheduler{
		fullEvery:   fullEvery,
		maxPartials: maxPartials,
	}
}

// Decide returns the refresh mode to use for an update happening at now.
// It does not mutate state; callers record the executed decision with
// RecordFull or RecordPartial.
func (s *Scheduler) Decide(now time.Time) Mode {
	if now.Sub(s.lastFull) >= s.fullEvery {
		return ModeFull
	}
	if s.partials >= s.maxPartials {
		return ModeFull
	}
	return ModePartial
}

// RecordFull notes that a full refresh executed at now and resets the
// partial counter. Calling it repeatedly is idempotent.
func (s *Scheduler) RecordFull(now time.Time) {
	s.lastFull = now
	s.partials = 0
}

// RecordPartial notes that a partial update executed.
func (s *Scheduler) RecordPartial() {
	s.partials++
}

// Partials returns the number of partial updates since the last full
// refresh.
func (s *Scheduler) Partials() int {
	return s.partials
}

// ForceFull makes the next Decide return ModeFull regardless of elapsed
// time, used when the composed frame is known to have diverged from the
// panel (e.g. a layout-affecting config reload).
func (s *Scheduler) ForceFull() {
	s.partials = s.maxPartials
}

// SetPolicy replaces the refresh tuning. Counters are kept so a reload
// cannot indefinitely defer an already-due full refresh.
func (s *Scheduler) SetPolicy(fullEvery time.Duration, maxPartials int) {
	s.fullEvery = fullEvery
	s.maxPartials = maxPartials
}
