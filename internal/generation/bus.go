package generation

import (
	"log/slog"
	"sync"
)

// ProgressBus fans per-job state changes out to subscribers. Publishers call
// publish while holding the job's lock, which gives every subscriber the same
// total order of events for one job. Delivery happens on a dedicated
// goroutine per subscriber, so a slow callback delays neither the publisher
// nor other subscribers.
type ProgressBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	logger *slog.Logger
}

// NewProgressBus creates an empty bus.
func NewProgressBus(logger *slog.Logger) *ProgressBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressBus{
		subs:   make(map[string]map[uint64]*subscriber),
		logger: logger,
	}
}

// publish enqueues the event to every subscriber of the job. The caller must
// hold the job's lock; enqueueing never blocks.
func (b *ProgressBus) publish(jobID string, ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[jobID] {
		sub.enqueue(ev)
	}
}

// add registers a new subscriber for the job. The caller starts the delivery
// loop once the replay event has been delivered.
func (b *ProgressBus) add(jobID string, cb ProgressCallback) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := newSubscriber(b.nextID, jobID, cb, b.logger)
	set := b.subs[jobID]
	if set == nil {
		set = make(map[uint64]*subscriber)
		b.subs[jobID] = set
	}
	set[sub.id] = sub
	return sub
}

// remove detaches one subscriber.
func (b *ProgressBus) remove(jobID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[jobID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.subs, jobID)
		}
	}
}

// dropJob tears down the subscriber set of a deleted job. Events already
// queued (typically the terminal event) still drain before each delivery
// loop exits.
func (b *ProgressBus) dropJob(jobID string) {
	b.mu.Lock()
	set := b.subs[jobID]
	delete(b.subs, jobID)
	b.mu.Unlock()

	for _, sub := range set {
		sub.close()
	}
}

// subscriberCount reports the live subscriber count for a job.
func (b *ProgressBus) subscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[jobID])
}

// subscriber is one registered callback plus its ordered delivery queue.
type subscriber struct {
	id     uint64
	jobID  string
	cb     ProgressCallback
	logger *slog.Logger

	// cbMu serializes callback invocations; cancel acquires it so that no
	// callback can begin after an unsubscribe returns.
	cbMu      sync.Mutex
	cancelled bool

	qMu    sync.Mutex
	qCond  *sync.Cond
	queue  []ProgressEvent
	closed bool
}

func newSubscriber(id uint64, jobID string, cb ProgressCallback, logger *slog.Logger) *subscriber {
	s := &subscriber{
		id:     id,
		jobID:  jobID,
		cb:     cb,
		logger: logger,
	}
	s.qCond = sync.NewCond(&s.qMu)
	return s
}

// enqueue appends an event to the delivery queue. No-op after close.
func (s *subscriber) enqueue(ev ProgressEvent) {
	s.qMu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
		s.qCond.Signal()
	}
	s.qMu.Unlock()
}

// run drains the queue in order and exits once the queue is closed and empty.
func (s *subscriber) run() {
	for {
		s.qMu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.qCond.Wait()
		}
		if len(s.queue) == 0 {
			s.qMu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.qMu.Unlock()

		s.deliver(ev)
	}
}

// deliver invokes the callback once. A panicking callback is logged and
// discarded; it never propagates back to the publisher.
func (s *subscriber) deliver(ev ProgressEvent) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.cancelled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("progress callback panicked",
				slog.String("job_id", s.jobID),
				slog.Any("panic", r))
		}
	}()
	s.cb(ev)
}

// close stops the delivery loop after the queue drains.
func (s *subscriber) close() {
	s.qMu.Lock()
	s.closed = true
	s.qCond.Signal()
	s.qMu.Unlock()
}

// cancel waits for any running callback to finish, then prevents further
// callbacks and releases the delivery loop.
func (s *subscriber) cancel() {
	s.cbMu.Lock()
	s.cancelled = true
	s.cbMu.Unlock()
	s.close()
}
