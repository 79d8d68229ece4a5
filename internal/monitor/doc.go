// Package monitor provides recursive filesystem watching for
// change-notification autoscans. It wraps fsnotify with per-directory
// debouncing and automatic watch extension into newly created
// subdirectories, delivering rescan triggers without ever running a
// scan on the watcher goroutine.
package monitor
