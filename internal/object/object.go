package object

import (
	"maps"
	"slices"
	"time"
)

// ID identifies a persisted object in the store.
type ID int64

const (
	// InvalidID marks an object that has not been persisted yet.
	InvalidID ID = -1
	// RootID is the synthetic root container of the virtual tree.
	RootID ID = 0
	// FsRootID is the synthetic container mirroring the filesystem root.
	FsRootID ID = 1
)

// Forbidden reports whether id is one of the synthetic containers that must
// never be removed or replaced.
func (id ID) Forbidden() bool {
	return id == RootID || id == FsRootID
}

// Valid reports whether id refers to a persisted object.
func (id ID) Valid() bool {
	return id > InvalidID
}

// Type discriminates items (leaves mapping to one file) from containers
// (directories or virtual groupings).
type Type string

const (
	// TypeItem is a leaf object backed by a single file.
	TypeItem Type = "item"
	// TypeContainer is a directory-like node in the virtual tree.
	TypeContainer Type = "container"
)

// Class is the UPnP class assigned to an object.
type Class string

const (
	ClassContainer    Class = "object.container"
	ClassFolder       Class = "object.container.storageFolder"
	ClassMusicAlbum   Class = "object.container.album.musicAlbum"
	ClassMusicArtist  Class = "object.container.person.musicArtist"
	ClassItem         Class = "object.item"
	ClassImageItem    Class = "object.item.imageItem.photo"
	ClassVideoItem    Class = "object.item.videoItem"
	ClassAudioItem    Class = "object.item.audioItem.musicTrack"
	ClassPlaylistItem Class = "object.item.playlistItem"
)

// Object flags.
const (
	// FlagPlayed marks an item that has been played at least once.
	FlagPlayed uint32 = 1 << iota
)

// Metadata keys shared between items and containers.
const (
	MetaTitle       = "title"
	MetaArtist      = "artist"
	MetaAlbum       = "album"
	MetaAlbumArtist = "album_artist"
	MetaDescription = "description"
	MetaTrackNumber = "track_number"
	MetaDate        = "date"
)

// Object is a node in the virtual content tree, either an item or a
// container depending on Type. Objects are value-mutated through the
// clone-modify-compare pattern: callers Clone, edit the copy, and persist
// only when Equals reports a difference.
type Object struct {
	ID       ID
	ParentID ID
	// RefID links a virtual object back to the physical object it was
	// derived from, InvalidID for physical objects.
	RefID    ID
	Type     Type
	Class    Class
	Title    string
	Location string
	Size     int64
	ModTime  time.Time
	MimeType string
	// ChildCount is derived by the store and excluded from equality.
	ChildCount int
	Virtual    bool
	Flags      uint32
	Metadata   map[string]string
	Resources  []Resource
}

// IsContainer reports whether the object is a container.
func (o *Object) IsContainer() bool {
	return o.Type == TypeContainer
}

// IsItem reports whether the object is an item.
func (o *Object) IsItem() bool {
	return o.Type == TypeItem
}

// HasFlag reports whether the given flag bit is set.
func (o *Object) HasFlag(flag uint32) bool {
	return o.Flags&flag != 0
}

// SetFlag sets the given flag bit.
func (o *Object) SetFlag(flag uint32) {
	o.Flags |= flag
}

// GetMetadata returns the metadata value for key, or "" if unset.
func (o *Object) GetMetadata(key string) string {
	return o.Metadata[key]
}

// SetMetadata sets a metadata value, allocating the map on first use.
func (o *Object) SetMetadata(key, value string) {
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	o.Metadata[key] = value
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	clone := *o
	if o.Metadata != nil {
		clone.Metadata = maps.Clone(o.Metadata)
	}
	if o.Resources != nil {
		clone.Resources = make([]Resource, len(o.Resources))
		for i, res := range o.Resources {
			clone.Resources[i] = res.Clone()
		}
	}
	return &clone
}

// Equals reports whether two objects are structurally identical. ChildCount
// is excluded: it is derived state and must not force a store write.
func (o *Object) Equals(other *Object) bool {
	if other == nil {
		return false
	}
	if o.ID != other.ID ||
		o.ParentID != other.ParentID ||
		o.RefID != other.RefID ||
		o.Type != other.Type ||
		o.Class != other.Class ||
		o.Title != other.Title ||
		o.Location != other.Location ||
		o.Size != other.Size ||
		!o.ModTime.Equal(other.ModTime) ||
		o.MimeType != other.MimeType ||
		o.Virtual != other.Virtual ||
		o.Flags != other.Flags {
		return false
	}
	if !maps.Equal(o.Metadata, other.Metadata) && (len(o.Metadata) > 0 || len(other.Metadata) > 0) {
		return false
	}
	return slices.EqualFunc(o.Resources, other.Resources, Resource.Equals)
}

// FindResource returns the index of the first resource of the given kind,
// or -1 if none exists.
func (o *Object) FindResource(kind string) int {
	for i, res := range o.Resources {
		if res.Kind == kind {
			return i
		}
	}
	return -1
}

// AddResource appends a resource to the object.
func (o *Object) AddResource(res Resource) {
	o.Resources = append(o.Resources, res)
}

// RemoveResource deletes the first resource of the given kind, if present.
func (o *Object) RemoveResource(kind string) {
	if i := o.FindResource(kind); i >= 0 {
		o.Resources = slices.Delete(o.Resources, i, i+1)
	}
}

// ContainerMetadata derives the metadata set for a new container from the
// metadata of the object that triggered its creation. Album-artist falls
// back to artist, and item-specific fields that make no sense on a
// container are stripped.
func ContainerMetadata(itemMeta map[string]string) map[string]string {
	meta := make(map[string]string, len(itemMeta))
	maps.Copy(meta, itemMeta)

	if _, ok := meta[MetaAlbumArtist]; !ok {
		if artist, ok := meta[MetaArtist]; ok {
			meta[MetaAlbumArtist] = artist
		}
	}
	for _, key := range []string{MetaTitle, MetaDescription, MetaTrackNumber, MetaArtist} {
		delete(meta, key)
	}
	return meta
}
