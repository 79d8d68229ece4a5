// Package startup handles application configuration and startup logging.
//
// Configuration comes from environment variables with sensible defaults;
// LoadConfig validates directories, prints the startup banner, and logs
// the effective settings in labelled sections so a container log shows
// the full picture of how the process came up.
package startup
