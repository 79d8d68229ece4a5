// Package autoscan defines the registry of continuously monitored directory
// roots: their scan policy (timed or change-notification driven), recursion
// and hidden-file flags, concurrency guards, and the per-subpath
// modification-time watermarks that make rescans incremental.
//
// A directory may be registered in at most one scan mode at a time, and
// overlapping roots (one nested inside another) are rejected at
// registration. Watermarks never regress: an aborted scan commits whatever
// it accumulated, so the next pass resumes correctly.
package autoscan
