package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// Kind identifies what a task does. Used for metrics and the admin task list.
type Kind string

const (
	KindAddFile         Kind = "add-file"
	KindRemoveObject    Kind = "remove-object"
	KindRescanDirectory Kind = "rescan-directory"
	KindFetchContent    Kind = "fetch-content"
)

// Task is a unit of queued work. Implementations embed Base for the
// bookkeeping methods and provide Run. Run must check Valid (and the
// context) at cooperative checkpoints and return early when invalidated.
type Task interface {
	// Run executes the task body. Returning an error wrapping ErrShutdown
	// stops the worker loop; any other error is logged and swallowed.
	Run(ctx context.Context) error

	ID() uint64
	ParentID() uint64
	Kind() Kind
	Description() string
	Cancellable() bool
	Valid() bool
	Invalidate()

	setID(id uint64)
}

// Disposer is implemented by tasks holding external bookkeeping (counters,
// reservations) that must be released even when the task is skipped without
// ever running. Dispose is called exactly once for a task that is dequeued
// invalid or discarded at shutdown; a task whose Run executes releases its
// own state instead.
type Disposer interface {
	Dispose()
}

// Base carries the shared task state. Embed it in concrete task types.
type Base struct {
	id          uint64
	parentID    uint64
	kind        Kind
	cancellable bool
	invalid     atomic.Bool

	mu          sync.Mutex
	description string
}

// NewBase returns the bookkeeping state for a task of the given kind.
func NewBase(kind Kind, description string, cancellable bool) Base {
	return Base{kind: kind, description: description, cancellable: cancellable}
}

func (b *Base) setID(id uint64)  { b.id = id }
func (b *Base) ID() uint64       { return b.id }
func (b *Base) ParentID() uint64 { return b.parentID }
func (b *Base) Kind() Kind       { return b.kind }
func (b *Base) Cancellable() bool { return b.cancellable }

// SetParentID links this task to a parent task so that invalidating the
// parent also invalidates this task while it is still queued.
func (b *Base) SetParentID(id uint64) { b.parentID = id }

// Valid reports whether the task may still run or continue running.
func (b *Base) Valid() bool { return !b.invalid.Load() }

// Invalidate requests cooperative cancellation of the task.
func (b *Base) Invalidate() { b.invalid.Store(true) }

// Description returns the human-readable task description.
func (b *Base) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

// SetDescription updates the description shown in the admin task list.
func (b *Base) SetDescription(desc string) {
	b.mu.Lock()
	b.description = desc
	b.mu.Unlock()
}

// TaskInfo is a snapshot of a task for the admin API.
type TaskInfo struct {
	ID          uint64 `json:"id"`
	ParentID    uint64 `json:"parentId,omitempty"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Cancellable bool   `json:"cancellable"`
	Running     bool   `json:"running"`
}
