// Package scheduler implements the background task queue of the content
// synchronization engine: two FIFO priority tiers drained by one dedicated
// worker goroutine.
//
// The single-consumer design guarantees that exactly one task executes at a
// time, so no two scans ever run concurrently against the shared store.
// Ordering within a tier is FIFO; the normal tier always drains before the
// low tier, so interactively queued work is never pre-empted by background
// rescans, but background work also never starves.
//
// Cancellation is cooperative: Invalidate marks a task (and any queued task
// whose parent ID matches) invalid, and task bodies are expected to check
// Valid at each directory-entry iteration and recursion boundary.
package scheduler
