package store

import (
	"context"
	"testing"

	"media-sync/internal/object"
)

func TestAddContainerChainCreatesAndReuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chain := []*object.Object{
		{Title: "Audio"},
		{Title: "Albums"},
		{Title: "Record", Class: object.ClassMusicAlbum, Metadata: map[string]string{object.MetaAlbum: "Record"}},
	}

	deepest, created, err := s.AddContainerChain(ctx, chain)
	if err != nil {
		t.Fatalf("AddContainerChain error: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d containers, want 3", len(created))
	}
	if deepest != created[2] {
		t.Errorf("deepest = %d, want last created %d", deepest, created[2])
	}

	album, err := s.LoadObject(ctx, deepest)
	if err != nil {
		t.Fatal(err)
	}
	if album.Class != object.ClassMusicAlbum || !album.Virtual {
		t.Errorf("album container = %+v", album)
	}
	if album.GetMetadata(object.MetaAlbum) != "Record" {
		t.Error("chain element metadata lost")
	}

	// A level without an explicit class gets the generic container class.
	top, err := s.LoadObject(ctx, created[0])
	if err != nil {
		t.Fatal(err)
	}
	if top.Class != object.ClassContainer {
		t.Errorf("top container class = %q", top.Class)
	}
	if top.ParentID != object.RootID {
		t.Errorf("top container parent = %d, want root", top.ParentID)
	}

	// The same chain resolves to the same deepest ID with nothing created.
	again, created2, err := s.AddContainerChain(ctx, chain)
	if err != nil {
		t.Fatal(err)
	}
	if again != deepest {
		t.Errorf("second resolution = %d, want %d", again, deepest)
	}
	if len(created2) != 0 {
		t.Errorf("second resolution created %d containers", len(created2))
	}

	// A sibling chain shares the common prefix.
	_, created3, err := s.AddContainerChain(ctx, []*object.Object{
		{Title: "Audio"},
		{Title: "Albums"},
		{Title: "Other Record"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(created3) != 1 {
		t.Errorf("sibling chain created %d containers, want 1", len(created3))
	}
}

func TestAddContainerChainRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.AddContainerChain(ctx, nil); err == nil {
		t.Error("empty chain should be rejected")
	}
	if _, _, err := s.AddContainerChain(ctx, []*object.Object{{Title: ""}}); err == nil {
		t.Error("untitled chain element should be rejected")
	}
}

func TestEnsurePathExistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.EnsurePathExistence(ctx, "/media", "/media/photos/2024")
	if err != nil {
		t.Fatalf("EnsurePathExistence error: %v", err)
	}

	leaf, err := s.LoadObject(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Location != "/media/photos/2024" || leaf.Virtual {
		t.Errorf("leaf container = %+v", leaf)
	}
	if leaf.Class != object.ClassFolder {
		t.Errorf("leaf class = %q", leaf.Class)
	}

	// Each ancestor exists as a physical container.
	rootID, err := s.FindObjectIDByPath(ctx, "/media")
	if err != nil {
		t.Fatalf("root container missing: %v", err)
	}
	root, err := s.LoadObject(ctx, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if root.ParentID != object.FsRootID {
		t.Errorf("root container parent = %d, want filesystem root", root.ParentID)
	}

	// Idempotent: resolving again returns the same ID.
	again, err := s.EnsurePathExistence(ctx, "/media", "/media/photos/2024")
	if err != nil || again != id {
		t.Errorf("second resolution = %d, %v, want %d", again, err, id)
	}

	// The root itself resolves without creating anything deeper.
	top, err := s.EnsurePathExistence(ctx, "/media", "/media")
	if err != nil || top != rootID {
		t.Errorf("EnsurePathExistence(root) = %d, %v, want %d", top, err, rootID)
	}
}

func TestEnsurePathExistenceRejectsOutsideRoot(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.EnsurePathExistence(context.Background(), "/media", "/other/dir"); err == nil {
		t.Error("path outside the root should be rejected")
	}
}
