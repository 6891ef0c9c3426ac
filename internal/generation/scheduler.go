package generation

import "sync"

// Scheduler admits jobs against a fixed concurrency cap. Admission is
// synchronous: when the cap is reached the caller gets a CapacityExhausted
// error immediately, there is no queue to wait in.
type Scheduler struct {
	mu     sync.Mutex
	active int
	max    int
}

// NewScheduler creates a scheduler with the given cap. Non-positive values
// fall back to DefaultMaxConcurrentJobs.
func NewScheduler(maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	return &Scheduler{max: maxConcurrent}
}

// Admit claims one slot. At the cap it returns a CapacityExhausted error
// without blocking.
func (s *Scheduler) Admit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= s.max {
		return NewCapacityError(s.active, s.max)
	}
	s.active++
	return nil
}

// Release returns one slot. Releasing below zero is a programming error and
// is clamped.
func (s *Scheduler) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
}

// Active returns the number of jobs currently holding a slot.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Max returns the concurrency cap.
func (s *Scheduler) Max() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}
