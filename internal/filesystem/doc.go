/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

This package wraps the filesystem operations the scan engine performs
(os.Stat, os.Lstat, os.ReadDir) with retry logic specifically designed to
handle transient NFS failures, particularly ESTALE (stale file handle) errors
that occur when NFS-mounted media directories are accessed during network
issues or server-side changes.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Configurable retry attempts (default: 3) and backoff timings
  - Transparent fallback to standard os behavior for non-NFS errors
  - Per-volume metric labeling via VolumeResolver

# Usage

	info, err := filesystem.Stat("/media/Movies/foo.mp4", filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}

	entries, err := filesystem.ReadDir("/media/Movies", filesystem.DefaultRetryConfig())

# Retry Behavior

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts. Backoff doubles per attempt up to
MaxBackoff (50ms → 100ms → 200ms by default).
*/
package filesystem
