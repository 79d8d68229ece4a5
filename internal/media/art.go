package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"media-sync/internal/logging"
	"media-sync/internal/object"
)

// DefaultArtNames are the cover image filenames probed, in order, when a
// container has no art of its own.
var DefaultArtNames = []string{
	"cover.jpg",
	"cover.png",
	"folder.jpg",
	"folder.png",
	"albumart.jpg",
	"album.jpg",
	"front.jpg",
}

// ArtLocator probes directories for cover images usable as container art.
type ArtLocator struct {
	names       []string
	parentCount int
	minDepth    int
}

// NewArtLocator returns a locator probing the given filenames. An empty
// list falls back to DefaultArtNames.
func NewArtLocator(names []string) *ArtLocator {
	if len(names) == 0 {
		names = DefaultArtNames
	}
	return &ArtLocator{names: names}
}

// SetSearchBounds configures the upward search performed by FindUp:
// parentCount is how many parent directories may be probed beyond the
// item's own, and minDepth is the minimum depth below the scan root a
// probed parent must keep. Negative values are treated as zero.
func (l *ArtLocator) SetSearchBounds(parentCount, minDepth int) {
	if parentCount < 0 {
		parentCount = 0
	}
	if minDepth < 0 {
		minDepth = 0
	}
	l.parentCount = parentCount
	l.minDepth = minDepth
}

// Find probes dir for a cover image. The image is decoded to verify it is
// usable and to capture its resolution; an unreadable candidate is skipped,
// not returned. The second result is false when no candidate matched.
func (l *ArtLocator) Find(dir string) (object.Resource, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debug("Art probe cannot read %s: %v", dir, err)
		return object.Resource{}, false
	}

	// Case-insensitive match against directory contents.
	byLower := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			byLower[strings.ToLower(e.Name())] = e.Name()
		}
	}

	for _, name := range l.names {
		actual, ok := byLower[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, actual)

		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			logging.Debug("Art candidate %s is not decodable: %v", path, err)
			continue
		}
		bounds := img.Bounds()

		res := object.Resource{
			Kind:     object.ResourceArt,
			Location: path,
		}
		res.SetAttribute(object.AttrResolution,
			fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()))
		return res, true
	}
	return object.Resource{}, false
}

// FindUp probes dir and then its parents for a cover image, climbing at
// most the configured number of levels and never above root or below the
// configured minimum depth. With a zero parent count it behaves like Find.
func (l *ArtLocator) FindUp(dir, root string) (object.Resource, bool) {
	dir = filepath.Clean(dir)
	root = filepath.Clean(root)

	for level := 0; ; level++ {
		if res, ok := l.Find(dir); ok {
			return res, true
		}
		if level >= l.parentCount || dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir || !withinRoot(root, parent) || relDepth(root, parent) < l.minDepth {
			break
		}
		dir = parent
	}
	return object.Resource{}, false
}

func withinRoot(root, dir string) bool {
	return dir == root || strings.HasPrefix(dir, root+string(filepath.Separator))
}

// relDepth counts directory levels of dir below root; root itself is 0.
func relDepth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
