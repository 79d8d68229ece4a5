package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingTask appends its label to a shared log when run.
type recordingTask struct {
	Base
	label   string
	log     *executionLog
	block   chan struct{}
	started chan struct{}
	runErr  error
}

type executionLog struct {
	mu     sync.Mutex
	labels []string
}

func (l *executionLog) record(label string) {
	l.mu.Lock()
	l.labels = append(l.labels, label)
	l.mu.Unlock()
}

func (l *executionLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.labels...)
}

func newRecordingTask(label string, log *executionLog) *recordingTask {
	return &recordingTask{
		Base:  NewBase(KindAddFile, "task "+label, true),
		label: label,
		log:   log,
	}
}

func (t *recordingTask) Run(_ context.Context) error {
	if t.started != nil {
		close(t.started)
	}
	if t.block != nil {
		<-t.block
	}
	if t.log != nil {
		t.log.record(t.label)
	}
	return t.runErr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueueAssignsSequentialIDs(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	id1 := s.Enqueue(newRecordingTask("a", log), false)
	id2 := s.Enqueue(newRecordingTask("b", log), false)

	if id1 == 0 || id2 == 0 {
		t.Fatalf("Enqueue returned zero ID: %d, %d", id1, id2)
	}
	if id2 != id1+1 {
		t.Errorf("IDs not sequential: %d then %d", id1, id2)
	}
}

func TestRunsTasksInFIFOOrder(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	for _, label := range []string{"first", "second", "third"} {
		s.Enqueue(newRecordingTask(label, log), false)
	}

	s.Start()
	waitFor(t, func() bool { return len(log.snapshot()) == 3 })

	got := log.snapshot()
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", got, want)
		}
	}
}

func TestNormalTierDrainsBeforeLow(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	s.Enqueue(newRecordingTask("low-1", log), true)
	s.Enqueue(newRecordingTask("low-2", log), true)
	s.Enqueue(newRecordingTask("normal-1", log), false)

	s.Start()
	waitFor(t, func() bool { return len(log.snapshot()) == 3 })

	got := log.snapshot()
	if got[0] != "normal-1" {
		t.Errorf("execution order = %v, want normal tier first", got)
	}
}

func TestEnqueueAfterShutdownReturnsZero(t *testing.T) {
	s := New()
	s.Start()
	s.Shutdown()

	log := &executionLog{}
	if id := s.Enqueue(newRecordingTask("late", log), false); id != 0 {
		t.Errorf("Enqueue after Shutdown = %d, want 0", id)
	}
}

func TestInvalidatedTaskIsSkipped(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	gate := newRecordingTask("gate", log)
	gate.block = make(chan struct{})
	gate.started = make(chan struct{})
	s.Enqueue(gate, false)

	victim := newRecordingTask("victim", log)
	victimID := s.Enqueue(victim, false)
	survivor := newRecordingTask("survivor", log)
	s.Enqueue(survivor, false)

	s.Start()
	<-gate.started
	s.Invalidate(victimID)
	close(gate.block)

	waitFor(t, func() bool {
		got := log.snapshot()
		return len(got) == 2
	})

	for _, label := range log.snapshot() {
		if label == "victim" {
			t.Error("invalidated task was executed")
		}
	}
}

// disposableTask counts disposals alongside the usual execution log.
type disposableTask struct {
	recordingTask
	disposed chan struct{}
}

func newDisposableTask(label string, log *executionLog) *disposableTask {
	return &disposableTask{
		recordingTask: *newRecordingTask(label, log),
		disposed:      make(chan struct{}),
	}
}

func (t *disposableTask) Dispose() {
	close(t.disposed)
}

func TestSkippedInvalidTaskIsDisposed(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	gate := newRecordingTask("gate", log)
	gate.block = make(chan struct{})
	gate.started = make(chan struct{})
	s.Enqueue(gate, false)

	victim := newDisposableTask("victim", log)
	victimID := s.Enqueue(victim, false)

	s.Start()
	<-gate.started
	s.Invalidate(victimID)
	close(gate.block)

	select {
	case <-victim.disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("skipped task was never disposed")
	}
	for _, label := range log.snapshot() {
		if label == "victim" {
			t.Error("disposed task was also executed")
		}
	}
}

func TestShutdownDisposesQueuedTasks(t *testing.T) {
	s := New()

	log := &executionLog{}
	gate := newRecordingTask("gate", log)
	gate.block = make(chan struct{})
	gate.started = make(chan struct{})
	s.Enqueue(gate, false)

	pending := newDisposableTask("pending", log)
	s.Enqueue(pending, true)

	s.Start()
	<-gate.started

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	close(gate.block)
	<-done

	select {
	case <-pending.disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task not disposed at shutdown")
	}
}

func TestShutdownBeforeStartDisposesQueue(t *testing.T) {
	s := New()

	log := &executionLog{}
	pending := newDisposableTask("pending", log)
	s.Enqueue(pending, false)

	s.Shutdown()

	select {
	case <-pending.disposed:
	default:
		t.Fatal("never-started scheduler did not dispose its queue")
	}
}

func TestInvalidateCascadesToChildren(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	gate := newRecordingTask("gate", log)
	gate.block = make(chan struct{})
	gate.started = make(chan struct{})
	s.Enqueue(gate, false)

	parent := newRecordingTask("parent", log)
	parentID := s.Enqueue(parent, false)

	child := newRecordingTask("child", log)
	child.SetParentID(parentID)
	s.Enqueue(child, false)

	s.Start()
	<-gate.started
	s.Invalidate(parentID)
	close(gate.block)

	waitFor(t, func() bool { return len(log.snapshot()) == 1 })

	if !errorsContainsNone(log.snapshot(), "parent", "child") {
		t.Errorf("invalidation did not cascade: executed %v", log.snapshot())
	}
}

func errorsContainsNone(labels []string, forbidden ...string) bool {
	for _, l := range labels {
		for _, f := range forbidden {
			if l == f {
				return false
			}
		}
	}
	return true
}

func TestInvalidateWhere(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	keep := newRecordingTask("keep", log)
	drop := newRecordingTask("drop", log)
	s.Enqueue(keep, false)
	s.Enqueue(drop, false)

	s.InvalidateWhere(func(task Task) bool {
		rt, ok := task.(*recordingTask)
		return ok && rt.label == "drop"
	})

	s.Start()
	waitFor(t, func() bool { return len(log.snapshot()) == 1 })

	if got := log.snapshot(); got[0] != "keep" {
		t.Errorf("executed %v, want only keep", got)
	}
}

func TestTaskErrorDoesNotStopWorker(t *testing.T) {
	s := New()
	defer s.Shutdown()

	log := &executionLog{}
	failing := newRecordingTask("failing", log)
	failing.runErr = errors.New("boom")
	s.Enqueue(failing, false)
	s.Enqueue(newRecordingTask("after", log), false)

	s.Start()
	waitFor(t, func() bool { return len(log.snapshot()) == 2 })
}

func TestShutdownErrorStopsWorker(t *testing.T) {
	s := New()

	log := &executionLog{}
	stopper := newRecordingTask("stopper", log)
	stopper.runErr = ErrShutdown
	s.Enqueue(stopper, false)
	s.Enqueue(newRecordingTask("never", log), false)

	s.Start()
	waitFor(t, func() bool { return len(log.snapshot()) >= 1 })
	s.Shutdown()

	for _, label := range log.snapshot() {
		if label == "never" {
			t.Error("worker kept running after shutdown error")
		}
	}
}

func TestTasksSnapshot(t *testing.T) {
	s := New()
	defer s.Shutdown()

	if infos := s.Tasks(); infos != nil {
		t.Errorf("Tasks() on idle scheduler = %v, want nil", infos)
	}

	log := &executionLog{}
	gate := newRecordingTask("gate", log)
	gate.block = make(chan struct{})
	gate.started = make(chan struct{})
	s.Enqueue(gate, false)
	queued := newRecordingTask("queued", log)
	queuedID := s.Enqueue(queued, false)

	s.Start()
	<-gate.started

	infos := s.Tasks()
	if len(infos) != 2 {
		t.Fatalf("Tasks() returned %d entries, want 2", len(infos))
	}
	if !infos[0].Running {
		t.Error("first entry should be the running task")
	}
	if infos[1].ID != queuedID || infos[1].Running {
		t.Errorf("second entry = %+v, want queued task %d", infos[1], queuedID)
	}

	close(gate.block)
}

func TestShutdownWaitsForRunningTask(t *testing.T) {
	s := New()

	log := &executionLog{}
	slow := newRecordingTask("slow", log)
	slow.block = make(chan struct{})
	slow.started = make(chan struct{})
	s.Enqueue(slow, false)

	s.Start()
	<-slow.started

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(slow.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return after task finished")
	}
}
