package generation

import (
	"context"
	"log/slog"
	"sync"
)

// Orchestrator is the public face of the generation subsystem. It owns the
// store, the admission scheduler, the executor and the TTL reaper, and is
// the only type callers outside this package need.
type Orchestrator struct {
	cfg       *Config
	store     *Store
	scheduler *Scheduler
	executor  *Executor
	reaper    *Reaper
	logger    *slog.Logger

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	shutdown bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an orchestrator and starts its reaper. cfg may be nil or
// partially populated; missing values take defaults.
func New(cfg *Config, caps Capabilities, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}

	bus := NewProgressBus(logger)
	store := NewStore(bus, logger)

	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		scheduler: NewScheduler(cfg.MaxConcurrentJobs),
		executor:  NewExecutor(store, caps, cfg, logger),
		reaper:    NewReaper(store, cfg.CleanupInterval, cfg.JobTTL, logger),
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
	o.reaper.Start()
	return o
}

// Submit validates the submission, admits it against the concurrency cap
// and starts the pipeline on its own goroutine. Both rejections happen
// synchronously, before any job record exists.
func (o *Orchestrator) Submit(image []byte, opts Options) (*SubmitResult, error) {
	mimeType, err := ValidateSubmission(image, &opts, o.cfg)
	if err != nil {
		return nil, err
	}

	if err := o.scheduler.Admit(); err != nil {
		o.logger.Warn("submission rejected at capacity",
			slog.Int("active", o.scheduler.Active()),
			slog.Int("max", o.scheduler.Max()))
		return nil, err
	}

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		o.scheduler.Release()
		return nil, ErrShutdown
	}
	job := o.store.Create(opts)
	runCtx, cancel := context.WithCancel(context.Background())
	o.cancels[job.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer o.scheduler.Release()
		defer o.removeCancel(job.ID)
		defer cancel()
		o.executor.Run(runCtx, job.ID, image, mimeType)
	}()

	result := &SubmitResult{
		JobID:            job.ID,
		Status:           job.Status,
		EstimatedSeconds: EstimateSeconds(job.Options),
	}
	o.logger.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.Int("estimated_seconds", result.EstimatedSeconds))
	return result, nil
}

// GetStatus returns a snapshot of the job, or ErrJobNotFound.
func (o *Orchestrator) GetStatus(jobID string) (*Job, error) {
	return o.store.Get(jobID)
}

// ListJobs returns snapshots of all jobs currently held.
func (o *Orchestrator) ListJobs() []*Job {
	return o.store.List()
}

// CancelJob requests cancellation of a non-terminal job and reports whether
// a running job was signalled. The transition to Failed happens
// asynchronously once the pipeline observes the signal.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	o.logger.Info("job cancellation requested", slog.String("job_id", jobID))
	return true
}

// DeleteJob removes a job regardless of status, cancelling it first when it
// is still running. Reports whether a job was removed.
func (o *Orchestrator) DeleteJob(jobID string) bool {
	o.CancelJob(jobID)
	return o.store.Delete(jobID)
}

// SubscribeProgress attaches a callback to the job's event stream. The
// current state is replayed before SubscribeProgress returns.
func (o *Orchestrator) SubscribeProgress(jobID string, cb ProgressCallback) (UnsubscribeFunc, error) {
	return o.store.Subscribe(jobID, cb)
}

// WaitForCompletion blocks until the job reaches a terminal status or the
// context expires. For a job already terminal it returns immediately via
// the subscription replay. A job that finished in Failed is returned
// together with a KindJobFailed error describing the failure.
func (o *Orchestrator) WaitForCompletion(ctx context.Context, jobID string) (*Job, error) {
	terminal := make(chan *Job, 1)
	unsubscribe, err := o.store.Subscribe(jobID, func(ev ProgressEvent) {
		if !ev.Status.IsTerminal() {
			return
		}
		job, gerr := o.store.Get(ev.JobID)
		if gerr != nil {
			// Record already evicted; rebuild what the event carries.
			job = jobFromEvent(ev)
		}
		select {
		case terminal <- job:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	select {
	case job := <-terminal:
		if job.Status == JobFailed {
			msg := job.Error
			if msg == "" {
				msg = "job failed"
			}
			return job, NewJobFailedError(job.ID, msg)
		}
		return job, nil
	case <-ctx.Done():
		return nil, Classify(ctx.Err(), "")
	}
}

// SystemStatus reports current orchestrator load.
func (o *Orchestrator) SystemStatus() SystemStatus {
	return SystemStatus{
		ActiveCount:   o.scheduler.Active(),
		MaxConcurrent: o.scheduler.Max(),
		TotalJobs:     o.store.Count(),
	}
}

// Shutdown stops accepting submissions, stops the reaper and waits for
// in-flight jobs to run to completion or the context to expire. Running
// jobs are not cancelled; the store remains readable afterwards.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.shutdown = true
		o.mu.Unlock()
		o.reaper.Stop()
		o.logger.Info("orchestrator shutting down")
	})

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator shut down")
		return nil
	case <-ctx.Done():
		return Classify(ctx.Err(), "")
	}
}

func (o *Orchestrator) removeCancel(jobID string) {
	o.mu.Lock()
	delete(o.cancels, jobID)
	o.mu.Unlock()
}

// jobFromEvent rebuilds a best-effort job snapshot from a terminal event
// when the record itself is gone.
func jobFromEvent(ev ProgressEvent) *Job {
	completed := ev.Timestamp
	return &Job{
		ID:          ev.JobID,
		Status:      ev.Status,
		Progress:    ev.Progress,
		Error:       ev.Error,
		Result:      ev.Result,
		UpdatedAt:   ev.Timestamp,
		CompletedAt: &completed,
	}
}
