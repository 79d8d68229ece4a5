// Package mediatypes provides shared media classification utilities for the
// content synchronization engine.
//
// This package exists as a dependency-light foundation that can be imported by
// other packages without creating import cycles. It contains extension tables
// and pure classification functions.
//
// # Classification
//
// Use Classify to resolve both the MIME type and the UPnP class of a file:
//
//	mime, class := mediatypes.Classify(path)
//
// or the lower-level helpers when the extension is already known:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	mime := mediatypes.GetMimeType(ext) // e.g., "image/jpeg"
//	class := mediatypes.GetClass(ext)   // e.g., object.ClassImageItem
//
// # Supported Formats
//
// The extension maps (ImageExtensions, VideoExtensions, AudioExtensions,
// PlaylistExtensions) can be used directly for format validation or iteration:
//
//	if mediatypes.ImageExtensions[ext] {
//	    // File is a supported image
//	}
package mediatypes
