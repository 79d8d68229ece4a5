// Package handlers implements the HTTP API: health and readiness probes,
// tree browsing, import and removal, autoscan administration, the task
// queue, and library statistics. Handlers translate between HTTP and the
// content facade; they never touch the filesystem or run scans themselves.
package handlers
