package layout

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"media-sync/internal/object"
)

// Adder is the slice of the content facade the layout needs: materializing
// container chains and filing virtual item copies under them.
type Adder interface {
	AddContainerChain(ctx context.Context, chain []*object.Object) (object.ID, error)
	AddVirtualItem(ctx context.Context, orig *object.Object, parentID object.ID) error
}

// Layout files newly added items into the virtual tree.
type Layout interface {
	Process(ctx context.Context, obj *object.Object, rootPath string) error
}

// Builtin is the default rule-based layout: items are grouped by media
// class into Photos, Video, Audio and Playlists branches, with secondary
// groupings by year, directory, artist and album.
type Builtin struct {
	adder Adder
}

// NewBuiltin returns the default layout filing through adder.
func NewBuiltin(adder Adder) *Builtin {
	return &Builtin{adder: adder}
}

func chain(titles ...string) []*object.Object {
	out := make([]*object.Object, len(titles))
	for i, title := range titles {
		out[i] = &object.Object{Title: title, Class: object.ClassContainer}
	}
	return out
}

// Process files obj under every branch its class calls for. Unknown
// classes are ignored rather than rejected; the physical tree already
// holds the object.
func (l *Builtin) Process(ctx context.Context, obj *object.Object, rootPath string) error {
	if !obj.IsItem() {
		return nil
	}

	switch {
	case strings.HasPrefix(string(obj.Class), "object.item.imageItem"):
		return l.processImage(ctx, obj)
	case strings.HasPrefix(string(obj.Class), "object.item.videoItem"):
		return l.processVideo(ctx, obj, rootPath)
	case strings.HasPrefix(string(obj.Class), "object.item.audioItem"):
		return l.processAudio(ctx, obj)
	case obj.Class == object.ClassPlaylistItem:
		return l.file(ctx, obj, chain("Playlists"))
	}
	return nil
}

func (l *Builtin) file(ctx context.Context, obj *object.Object, containers []*object.Object) error {
	parentID, err := l.adder.AddContainerChain(ctx, containers)
	if err != nil {
		return fmt.Errorf("failed to build container chain: %w", err)
	}
	return l.adder.AddVirtualItem(ctx, obj, parentID)
}

func (l *Builtin) processImage(ctx context.Context, obj *object.Object) error {
	if err := l.file(ctx, obj, chain("Photos", "All Photos")); err != nil {
		return err
	}

	year := obj.GetMetadata(object.MetaDate)
	if len(year) >= 4 {
		year = year[:4]
	} else if !obj.ModTime.IsZero() {
		year = fmt.Sprintf("%04d", obj.ModTime.Year())
	}
	if year == "" {
		return nil
	}
	return l.file(ctx, obj, chain("Photos", "Year", year))
}

func (l *Builtin) processVideo(ctx context.Context, obj *object.Object, rootPath string) error {
	if err := l.file(ctx, obj, chain("Video", "All Video")); err != nil {
		return err
	}

	// Mirror the directory structure below the scan root.
	dir := filepath.Dir(obj.Location)
	rel, err := filepath.Rel(rootPath, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	titles := append([]string{"Video", "Directories"},
		strings.Split(rel, string(filepath.Separator))...)
	return l.file(ctx, obj, chain(titles...))
}

func (l *Builtin) processAudio(ctx context.Context, obj *object.Object) error {
	if err := l.file(ctx, obj, chain("Audio", "All Audio")); err != nil {
		return err
	}

	artist := obj.GetMetadata(object.MetaAlbumArtist)
	if artist == "" {
		artist = obj.GetMetadata(object.MetaArtist)
	}
	album := obj.GetMetadata(object.MetaAlbum)

	if artist != "" {
		containers := []*object.Object{
			{Title: "Audio", Class: object.ClassContainer},
			{Title: "Artists", Class: object.ClassContainer},
			{Title: artist, Class: object.ClassMusicArtist},
		}
		if album != "" {
			containers = append(containers, &object.Object{
				Title:    album,
				Class:    object.ClassMusicAlbum,
				Metadata: object.ContainerMetadata(obj.Metadata),
			})
		}
		if err := l.file(ctx, obj, containers); err != nil {
			return err
		}
	}

	if album != "" {
		containers := []*object.Object{
			{Title: "Audio", Class: object.ClassContainer},
			{Title: "Albums", Class: object.ClassContainer},
			{Title: album, Class: object.ClassMusicAlbum,
				Metadata: object.ContainerMetadata(obj.Metadata)},
		}
		if err := l.file(ctx, obj, containers); err != nil {
			return err
		}
	}
	return nil
}
