// Package content is the facade over the synchronization engine. It owns
// the single-worker task scheduler, the scan timer, the filesystem change
// monitor, the autoscan registry, and the container chain cache, and it is
// the only writer of the object tree: imports, incremental rescans,
// removals and autoscan administration all funnel through the Manager.
//
// Scans are incremental. Each autoscan directory keeps per-directory
// watermarks of the highest modification time seen by the last completed
// scan; a rescan only re-imports files newer than that, removes whatever
// the directory listing no longer accounts for, and commits the new
// watermarks when it finishes, aborts, or the process shuts down.
package content
