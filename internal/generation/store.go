package generation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory job store. The top-level map is guarded by a
// RWMutex; each job carries its own lock so mutations of different jobs
// never contend. Every mutation publishes exactly one ProgressEvent while
// the job's lock is still held, which is what keeps the per-job event
// stream totally ordered.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	bus    *ProgressBus
	logger *slog.Logger
}

type jobEntry struct {
	mu  sync.Mutex
	job *Job
}

// NewStore creates an empty store publishing to the given bus.
func NewStore(bus *ProgressBus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewProgressBus(logger)
	}
	return &Store{
		jobs:   make(map[string]*jobEntry),
		bus:    bus,
		logger: logger,
	}
}

// Bus exposes the progress bus the store publishes on.
func (s *Store) Bus() *ProgressBus { return s.bus }

// Create registers a new Pending job for the given options and returns a
// snapshot of it. Creation itself emits no event; the first event a
// subscriber sees is the replay of the state current at subscribe time.
func (s *Store) Create(opts Options) *Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		Progress:  newProgressMap(opts),
		Options:   opts.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = &jobEntry{job: job}
	s.mu.Unlock()

	s.logger.Debug("job created", slog.String("job_id", job.ID))
	return job.Clone()
}

// Get returns a snapshot of the job, or ErrJobNotFound.
func (s *Store) Get(id string) (*Job, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Clone(), nil
}

// List returns snapshots of all jobs in unspecified order.
func (s *Store) List() []*Job {
	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	jobs := make([]*Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		jobs = append(jobs, e.job.Clone())
		e.mu.Unlock()
	}
	return jobs
}

// Count returns the number of jobs currently held, terminal ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// UpdateStatus transitions the job's overall status. Entering a terminal
// status stamps completedAt with the same instant as updatedAt. Mutating a
// job already terminal returns ErrJobTerminal.
func (s *Store) UpdateStatus(id string, status JobStatus) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := entry.job
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	if status.IsTerminal() {
		done := job.UpdatedAt
		job.CompletedAt = &done
	}
	s.publishLocked(job)
	return nil
}

// UpdateStage transitions one stage of the job. Skipped stages are frozen at
// creation and reject any transition with ErrStageSkipped.
func (s *Store) UpdateStage(id string, stage StageName, status StageStatus) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := entry.job
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	current, ok := job.Progress[stage]
	if !ok {
		return NewFatalError(stage, "unknown stage", nil)
	}
	if current == StageSkipped {
		return ErrStageSkipped
	}
	job.Progress[stage] = status
	job.UpdatedAt = time.Now()
	s.publishLocked(job)
	return nil
}

// SetResult merges the non-zero fields of patch into the job's result. Each
// call publishes one event carrying the merged result snapshot.
func (s *Store) SetResult(id string, patch *Result) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := entry.job
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	if patch == nil {
		return nil
	}
	if job.Result == nil {
		job.Result = &Result{}
	}
	if patch.Analysis != nil {
		job.Result.Analysis = patch.Analysis
	}
	if patch.Packages != nil {
		job.Result.Packages = patch.Packages
	}
	if patch.Ads != nil {
		job.Result.Ads = patch.Ads
	}
	if patch.Texts != nil {
		job.Result.Texts = patch.Texts
	}
	if patch.DownloadURL != "" {
		job.Result.DownloadURL = patch.DownloadURL
	}
	job.UpdatedAt = time.Now()
	s.publishLocked(job)
	return nil
}

// SetError records the job-level error message without changing status.
func (s *Store) SetError(id string, message string) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	job := entry.job
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	job.Error = message
	job.UpdatedAt = time.Now()
	s.publishLocked(job)
	return nil
}

// Delete removes the job regardless of status and detaches its subscribers.
// Already-queued events still reach subscribers before their delivery loops
// stop. Reports whether a job was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if ok {
		s.bus.dropJob(id)
		s.logger.Debug("job deleted", slog.String("job_id", id))
	}
	return ok
}

// DeleteExpired removes terminal jobs whose age since creation exceeds ttl
// and returns how many were removed. Running jobs are never touched.
func (s *Store) DeleteExpired(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	deleted := 0
	for _, e := range entries {
		e.mu.Lock()
		id := e.job.ID
		expired := e.job.Status.IsTerminal() && e.job.CreatedAt.Before(cutoff)
		e.mu.Unlock()
		if expired && s.Delete(id) {
			deleted++
		}
	}
	return deleted
}

// Subscribe registers a callback for the job's events. The current state is
// replayed to the callback synchronously before Subscribe returns, so the
// subscriber always observes a coherent prefix of the job's history. The
// returned UnsubscribeFunc blocks until any in-flight callback finishes.
func (s *Store) Subscribe(id string, cb ProgressCallback) (UnsubscribeFunc, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	replay := s.eventFor(entry.job)
	sub := s.bus.add(id, cb)
	entry.mu.Unlock()

	// Events published after registration queue up behind the replay,
	// which is delivered first and in the caller's goroutine.
	sub.deliver(replay)
	go sub.run()

	return func() {
		sub.cancel()
		s.bus.remove(sub.jobID, sub.id)
	}, nil
}

func (s *Store) entry(id string) (*jobEntry, error) {
	s.mu.RLock()
	entry := s.jobs[id]
	s.mu.RUnlock()
	if entry == nil {
		return nil, ErrJobNotFound
	}
	return entry, nil
}

// publishLocked emits one event for the job's current state. Callers hold
// the job's lock.
func (s *Store) publishLocked(job *Job) {
	s.bus.publish(job.ID, s.eventFor(job))
}

// eventFor snapshots the job into an event. The kind follows the overall
// status so the terminal event is always EventComplete or EventError.
func (s *Store) eventFor(job *Job) ProgressEvent {
	kind := EventProgress
	switch job.Status {
	case JobCompleted:
		kind = EventComplete
	case JobFailed:
		kind = EventError
	}

	progress := make(map[StageName]StageStatus, len(job.Progress))
	for stage, status := range job.Progress {
		progress[stage] = status
	}

	ev := ProgressEvent{
		JobID:     job.ID,
		Kind:      kind,
		Status:    job.Status,
		Progress:  progress,
		Error:     job.Error,
		Timestamp: job.UpdatedAt,
	}
	if job.Result != nil {
		ev.Result = job.Result.Clone()
	}
	return ev
}
