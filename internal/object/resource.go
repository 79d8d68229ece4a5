package object

import "maps"

// Resource kinds.
const (
	// ResourceContent is the primary file resource of an item.
	ResourceContent = "content"
	// ResourceArt is a container or album art resource.
	ResourceArt = "art"
)

// Resource attribute keys.
const (
	// AttrResolution holds the pixel dimensions of an image resource.
	AttrResolution = "resolution"
	// AttrFanArtObjectID is the object a borrowed art resource points at.
	AttrFanArtObjectID = "fanart-object-id"
	// AttrFanArtResourceIndex is the resource index within that object.
	AttrFanArtResourceIndex = "fanart-resource-index"
)

// Resource describes one representation of an object: the file content
// itself, or supplementary data such as art. Fan-art borrowed from another
// object carries a weak reference (AttrFanArtObjectID plus
// AttrFanArtResourceIndex) instead of duplicating the resource.
type Resource struct {
	Kind       string
	Location   string
	Attributes map[string]string
}

// Clone returns a deep copy of the resource.
func (r Resource) Clone() Resource {
	clone := r
	if r.Attributes != nil {
		clone.Attributes = maps.Clone(r.Attributes)
	}
	return clone
}

// Equals reports whether two resources are identical.
func (r Resource) Equals(other Resource) bool {
	if r.Kind != other.Kind || r.Location != other.Location {
		return false
	}
	return maps.Equal(r.Attributes, other.Attributes)
}

// GetAttribute returns the attribute value for key, or "" if unset.
func (r Resource) GetAttribute(key string) string {
	return r.Attributes[key]
}

// SetAttribute sets an attribute value, allocating the map on first use.
func (r *Resource) SetAttribute(key, value string) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]string)
	}
	r.Attributes[key] = value
}
