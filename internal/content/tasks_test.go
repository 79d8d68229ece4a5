package content

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"media-sync/internal/autoscan"
	"media-sync/internal/store"
	"media-sync/internal/timer"
)

func waitForCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAddFileAsyncImportsOnWorker(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)

	if id := m.AddFileAsync(path, false, false); id == 0 {
		t.Fatal("AddFileAsync returned no task ID")
	}

	waitForCondition(t, "async import", func() bool {
		_, err := st.FindObjectIDByPath(ctx, path)
		return err == nil
	})
}

func TestRemoveObjectAsyncRemovesOnWorker(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)
	id, err := m.AddFile(ctx, path, false)
	if err != nil {
		t.Fatal(err)
	}

	if taskID := m.RemoveObjectAsync(id, false); taskID == 0 {
		t.Fatal("RemoveObjectAsync returned no task ID")
	}

	waitForCondition(t, "async removal", func() bool {
		_, err := st.FindObjectIDByPath(ctx, path)
		return errors.Is(err, store.ErrNotFound)
	})
}

func TestRegistrationScanCommitsWatermark(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"))

	d := autoscan.New(root, autoscan.ModeTimed, true, false, true, time.Hour)
	if err := m.SetAutoscanDirectory(ctx, d); err != nil {
		t.Fatal(err)
	}

	// Registration queues the initial scan; the worker imports the tree
	// and commits the watermark.
	waitForCondition(t, "initial scan", func() bool {
		saved, err := st.FindAutoscanByLocation(ctx, root)
		return err == nil && !saved.PreviousLMT(root).IsZero()
	})
	if _, err := st.FindObjectIDByPath(ctx, filepath.Join(root, "a.jpg")); err != nil {
		t.Errorf("initial scan did not import: %v", err)
	}

	waitForCondition(t, "task count drain", func() bool {
		cur := m.GetAutoscan(d.ScanID())
		return cur != nil && !cur.Busy()
	})
}

func TestInvalidatedQueuedRescanReleasesDirectory(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"))

	d := autoscan.New(root, autoscan.ModeTimed, true, false, false, time.Hour)
	if err := m.SetAutoscanDirectory(ctx, d); err != nil {
		t.Fatal(err)
	}
	if got := d.TaskCount(); got != 1 {
		t.Fatalf("pending tasks = %d, want 1", got)
	}

	// Retire the queued scan before the worker ever sees it. Skipping it
	// must still release the directory's task slot.
	m.invalidateScanTasks(d.ScanID())
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	waitForCondition(t, "task slot release", func() bool {
		return !d.Busy()
	})
	if _, err := st.FindObjectIDByPath(ctx, filepath.Join(root, "a.jpg")); !errors.Is(err, store.ErrNotFound) {
		t.Error("retired queued scan still imported files")
	}

	// The next tick is no longer shadowed by the dead task.
	m.timerNotify(timer.Parameter{Kind: autoscanTimerKind, ScanID: d.ScanID()})
	waitForCondition(t, "rescheduled import", func() bool {
		_, err := st.FindObjectIDByPath(ctx, filepath.Join(root, "a.jpg"))
		return err == nil
	})
}

func TestFinishScanTouchesScannedContainer(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"))

	d := autoscan.New(root, autoscan.ModeTimed, true, false, false, time.Hour)
	if err := m.SetAutoscanDirectory(ctx, d); err != nil {
		t.Fatal(err)
	}

	// Age the container so the touch is observable at second granularity.
	before, err := st.LoadObject(ctx, d.ObjectID())
	if err != nil {
		t.Fatal(err)
	}
	stale := before.Clone()
	stale.ModTime = time.Unix(time.Now().Add(-time.Hour).Unix(), 0)
	if err := st.UpdateObject(ctx, stale); err != nil {
		t.Fatal(err)
	}

	d.IncActiveScans()
	if err := m.rescanDirectory(ctx, d, d.ScanID(), root, nil); err != nil {
		t.Fatal(err)
	}
	m.finishScan(ctx, d)

	after, err := st.LoadObject(ctx, d.ObjectID())
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime.After(stale.ModTime) {
		t.Errorf("container mtime %v not advanced by the scan", after.ModTime)
	}

	// A scan that observes nothing new leaves the container alone.
	stale.ModTime = time.Unix(time.Now().Add(-time.Hour).Unix(), 0)
	if err := st.UpdateObject(ctx, stale); err != nil {
		t.Fatal(err)
	}
	d.IncActiveScans()
	if err := m.rescanDirectory(ctx, d, d.ScanID(), root, nil); err != nil {
		t.Fatal(err)
	}
	m.finishScan(ctx, d)
	after, err = st.LoadObject(ctx, d.ObjectID())
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime.Equal(stale.ModTime) {
		t.Errorf("unchanged scan touched the container: %v", after.ModTime)
	}
}

func TestWatchScanImportsNewFile(t *testing.T) {
	m, st, _ := newTestManager(t, Config{})
	m.watch.SetDebounce(25 * time.Millisecond)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	d := autoscan.New(root, autoscan.ModeWatch, true, false, false, 0)
	if err := m.SetAutoscanDirectory(ctx, d); err != nil {
		t.Fatal(err)
	}

	// Let the registration scan drain before touching the tree.
	waitForCondition(t, "registration scan", func() bool {
		cur := m.GetAutoscan(d.ScanID())
		return cur != nil && !cur.Busy()
	})

	path := filepath.Join(root, "new.jpg")
	writeFile(t, path)

	waitForCondition(t, "watch-triggered import", func() bool {
		_, err := st.FindObjectIDByPath(ctx, path)
		return err == nil
	})
}
