package mediatypes

import (
	"path/filepath"
	"strings"

	"media-sync/internal/object"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".wma":  true,
	".opus": true,
}

// PlaylistExtensions maps file extensions to whether they are supported playlist formats.
var PlaylistExtensions = map[string]bool{
	".m3u":  true,
	".m3u8": true,
	".pls":  true,
	".wpl":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Audio
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/x-wav",
	".wma":  "audio/x-ms-wma",
	".opus": "audio/opus",

	// Playlists
	".m3u":  "audio/x-mpegurl",
	".m3u8": "audio/x-mpegurl",
	".pls":  "audio/x-scpls",
	".wpl":  "application/vnd.ms-wpl",
}

// GetClass returns the UPnP class for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns the generic item class if the extension is not recognized.
func GetClass(ext string) object.Class {
	switch {
	case ImageExtensions[ext]:
		return object.ClassImageItem
	case VideoExtensions[ext]:
		return object.ClassVideoItem
	case AudioExtensions[ext]:
		return object.ClassAudioItem
	case PlaylistExtensions[ext]:
		return object.ClassPlaylistItem
	}
	return object.ClassItem
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetClass(ext) != object.ClassItem
}

// Classify returns the MIME type and UPnP class for a file path.
func Classify(path string) (string, object.Class) {
	ext := strings.ToLower(filepath.Ext(path))
	return GetMimeType(ext), GetClass(ext)
}
