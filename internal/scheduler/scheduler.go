package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
)

// ErrShutdown is returned (possibly wrapped) by a task to signal that the
// worker loop must stop. It is distinguished from ordinary task failures,
// which are logged and swallowed.
var ErrShutdown = errors.New("shutdown in progress")

// Scheduler owns two FIFO task queues (normal and low priority) drained by a
// single worker goroutine. Exactly one task executes at a time; the normal
// tier always drains before the low tier.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	normal  []Task
	low     []Task
	current Task
	nextID  uint64
	closing bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. Call Start to launch the worker.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		nextID: 1,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closing {
		return
	}
	s.started = true
	go s.worker()
}

// Enqueue assigns the task a new sequential ID, appends it to the selected
// queue, and wakes the worker. It returns the assigned ID, or 0 when the
// scheduler is shutting down and the task was dropped.
func (s *Scheduler) Enqueue(t Task, lowPriority bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		logging.Debug("Dropping task %q: scheduler shutting down", t.Description())
		return 0
	}

	id := s.nextID
	s.nextID++
	t.setID(id)

	if lowPriority {
		s.low = append(s.low, t)
	} else {
		s.normal = append(s.normal, t)
	}
	s.updateQueueGauges()
	s.cond.Signal()
	return id
}

// Current returns the task in flight, or nil.
func (s *Scheduler) Current() Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Tasks returns a snapshot of the current task plus all queued valid tasks,
// in execution order.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	// No current task means the queues are empty too: the worker only
	// parks once both have drained.
	if s.current == nil {
		return nil
	}

	infos := []TaskInfo{snapshot(s.current, true)}
	for _, t := range s.normal {
		if t.Valid() {
			infos = append(infos, snapshot(t, false))
		}
	}
	for _, t := range s.low {
		if t.Valid() {
			infos = append(infos, snapshot(t, false))
		}
	}
	return infos
}

func snapshot(t Task, running bool) TaskInfo {
	return TaskInfo{
		ID:          t.ID(),
		ParentID:    t.ParentID(),
		Kind:        t.Kind(),
		Description: t.Description(),
		Cancellable: t.Cancellable(),
		Running:     running,
	}
}

// Invalidate marks the task with the given ID, and every task whose parent
// ID matches it, invalid. A running task exits at its next cooperative
// checkpoint; queued tasks are skipped when dequeued.
func (s *Scheduler) Invalidate(taskID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(t Task) {
		if t.ID() == taskID || t.ParentID() == taskID {
			t.Invalidate()
		}
	}
	if s.current != nil {
		match(s.current)
	}
	for _, t := range s.normal {
		match(t)
	}
	for _, t := range s.low {
		match(t)
	}
}

// InvalidateWhere marks every task (current and queued) for which pred
// returns true invalid. Used to cancel all work targeting a subtree that is
// about to be removed.
func (s *Scheduler) InvalidateWhere(pred func(Task) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && pred(s.current) {
		s.current.Invalidate()
	}
	for _, t := range s.normal {
		if pred(t) {
			t.Invalidate()
		}
	}
	for _, t := range s.low {
		if pred(t) {
			t.Invalidate()
		}
	}
}

// Shutdown stops the worker and waits for it to finish. The running task,
// if any, completes up to its next cooperative checkpoint. Queued tasks are
// discarded.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closing = true
	started := s.started
	if !started {
		for _, t := range s.normal {
			dispose(t)
		}
		for _, t := range s.low {
			dispose(t)
		}
		s.normal = nil
		s.low = nil
	}
	s.cancel()
	s.cond.Signal()
	s.mu.Unlock()

	if started {
		<-s.done
	} else {
		close(s.done)
	}
}

func (s *Scheduler) worker() {
	defer close(s.done)

	s.mu.Lock()
	for {
		if s.closing {
			break
		}

		var task Task
		if len(s.normal) > 0 {
			task = s.normal[0]
			s.normal = s.normal[1:]
		} else if len(s.low) > 0 {
			task = s.low[0]
			s.low = s.low[1:]
		}

		if task == nil {
			s.cond.Wait()
			continue
		}

		s.current = task
		s.updateQueueGauges()
		s.mu.Unlock()

		s.runTask(task)

		s.mu.Lock()
		s.current = nil
	}
	s.current = nil
	for _, t := range s.normal {
		dispose(t)
	}
	for _, t := range s.low {
		dispose(t)
	}
	s.normal = nil
	s.low = nil
	s.updateQueueGauges()
	s.mu.Unlock()
}

// dispose releases task-held resources for a task that will never run.
func dispose(t Task) {
	if d, ok := t.(Disposer); ok {
		d.Dispose()
	}
}

// runTask executes a single task outside the lock, recording metrics and
// containing failures so one bad task cannot kill the worker.
func (s *Scheduler) runTask(task Task) {
	kind := string(task.Kind())

	if !task.Valid() {
		metrics.TasksTotal.WithLabelValues(kind, "invalidated").Inc()
		dispose(task)
		return
	}

	metrics.SchedulerRunning.Set(1)
	defer metrics.SchedulerRunning.Set(0)

	start := time.Now()
	err := task.Run(s.ctx)
	metrics.TaskDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.TasksTotal.WithLabelValues(kind, "completed").Inc()
	case errors.Is(err, ErrShutdown), errors.Is(err, context.Canceled):
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
	default:
		metrics.TasksTotal.WithLabelValues(kind, "failed").Inc()
		logging.Error("Task %q failed: %v", task.Description(), err)
	}
}

// updateQueueGauges must be called with the lock held.
func (s *Scheduler) updateQueueGauges() {
	metrics.TasksQueued.WithLabelValues("normal").Set(float64(len(s.normal)))
	metrics.TasksQueued.WithLabelValues("low").Set(float64(len(s.low)))
}
