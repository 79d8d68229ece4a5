package media

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"media-sync/internal/object"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestArtLocatorFindsCover(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "cover.png"), 64, 48)

	res, ok := NewArtLocator(nil).Find(dir)
	if !ok {
		t.Fatal("cover.png not found")
	}
	if res.Kind != object.ResourceArt {
		t.Errorf("resource kind = %q", res.Kind)
	}
	if res.Location != filepath.Join(dir, "cover.png") {
		t.Errorf("resource location = %q", res.Location)
	}
	if got := res.GetAttribute(object.AttrResolution); got != "64x48" {
		t.Errorf("resolution = %q, want 64x48", got)
	}
}

func TestArtLocatorCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "Folder.PNG"), 10, 10)

	if _, ok := NewArtLocator(nil).Find(dir); !ok {
		t.Error("mixed-case art file should match")
	}
}

func TestArtLocatorPrefersEarlierName(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "cover.png"), 10, 10)
	writeTestPNG(t, filepath.Join(dir, "folder.png"), 10, 10)

	res, ok := NewArtLocator(nil).Find(dir)
	if !ok || filepath.Base(res.Location) != "cover.png" {
		t.Errorf("found %q, want cover.png", res.Location)
	}
}

func TestArtLocatorSkipsUndecodableCandidate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(dir, "folder.png"), 10, 10)

	res, ok := NewArtLocator(nil).Find(dir)
	if !ok {
		t.Fatal("decodable fallback not found")
	}
	if filepath.Base(res.Location) != "folder.png" {
		t.Errorf("found %q, want folder.png", res.Location)
	}
}

func TestArtLocatorCustomNames(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "art.png"), 10, 10)
	writeTestPNG(t, filepath.Join(dir, "cover.png"), 10, 10)

	res, ok := NewArtLocator([]string{"art.png"}).Find(dir)
	if !ok || filepath.Base(res.Location) != "art.png" {
		t.Errorf("custom name list ignored: %q", res.Location)
	}
}

func TestArtLocatorEmptyDir(t *testing.T) {
	if _, ok := NewArtLocator(nil).Find(t.TempDir()); ok {
		t.Error("empty directory should yield no art")
	}
}

func TestArtLocatorMissingDir(t *testing.T) {
	if _, ok := NewArtLocator(nil).Find(filepath.Join(t.TempDir(), "missing")); ok {
		t.Error("missing directory should yield no art")
	}
}

func TestFindUpClimbsWithinBounds(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "artist", "album")
	disc := filepath.Join(album, "disc1")
	if err := os.MkdirAll(disc, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(album, "cover.png"), 10, 10)

	l := NewArtLocator(nil)
	l.SetSearchBounds(2, 2)

	res, ok := l.FindUp(disc, root)
	if !ok {
		t.Fatal("cover one level up not found")
	}
	if res.Location != filepath.Join(album, "cover.png") {
		t.Errorf("location = %q", res.Location)
	}
}

func TestFindUpPrefersOwnDirectory(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "artist", "album")
	disc := filepath.Join(album, "disc1")
	if err := os.MkdirAll(disc, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(album, "cover.png"), 10, 10)
	writeTestPNG(t, filepath.Join(disc, "cover.png"), 10, 10)

	l := NewArtLocator(nil)
	l.SetSearchBounds(2, 0)

	res, ok := l.FindUp(disc, root)
	if !ok || res.Location != filepath.Join(disc, "cover.png") {
		t.Errorf("location = %q, want own-directory cover", res.Location)
	}
}

func TestFindUpRespectsMinDepth(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "artist", "album")
	if err := os.MkdirAll(album, 0o755); err != nil {
		t.Fatal(err)
	}
	// Art at depth 1 must stay invisible when the floor is depth 2.
	writeTestPNG(t, filepath.Join(root, "artist", "cover.png"), 10, 10)

	l := NewArtLocator(nil)
	l.SetSearchBounds(4, 2)

	if _, ok := l.FindUp(album, root); ok {
		t.Error("search climbed below the minimum depth")
	}
}

func TestFindUpStopsAtRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "library")
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(parent, "cover.png"), 10, 10)

	l := NewArtLocator(nil)
	l.SetSearchBounds(5, 0)

	if _, ok := l.FindUp(sub, root); ok {
		t.Error("search escaped the scan root")
	}
}

func TestFindUpZeroParentCountMatchesFind(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(root, "cover.png"), 10, 10)

	l := NewArtLocator(nil)
	if _, ok := l.FindUp(sub, root); ok {
		t.Error("default bounds should probe only the item's own directory")
	}
}
