// Package media provides media file helpers, currently album and folder
// art discovery. The ArtLocator scans a directory for conventional art
// file names (cover.jpg, folder.png, and so on) and validates that a
// candidate decodes as an image before attaching it as a resource.
package media
