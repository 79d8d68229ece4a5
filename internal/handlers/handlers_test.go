package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-sync/internal/content"
	"media-sync/internal/startup"
	"media-sync/internal/store"
)

type testEnv struct {
	router   *mux.Router
	h        *Handlers
	st       *store.Store
	manager  *content.Manager
	mediaDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	manager, err := content.NewManager(content.Config{}, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { manager.Shutdown(ctx) })
	if err := manager.Start(ctx); err != nil {
		t.Fatal(err)
	}

	mediaDir := t.TempDir()
	h := New(st, manager, &startup.Config{MediaDir: mediaDir})

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/objects/{id:[0-9]+}", h.GetObject).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}", h.UpdateObject).Methods("PATCH")
	api.HandleFunc("/objects/{id:[0-9]+}", h.DeleteObject).Methods("DELETE")
	api.HandleFunc("/objects/{id:[0-9]+}/children", h.BrowseObject).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}/played", h.MarkPlayed).Methods("POST")
	api.HandleFunc("/last-played", h.GetLastPlayed).Methods("GET")
	api.HandleFunc("/import", h.ImportPath).Methods("POST")
	api.HandleFunc("/autoscans", h.ListAutoscans).Methods("GET")
	api.HandleFunc("/autoscans", h.CreateAutoscan).Methods("POST")
	api.HandleFunc("/autoscans/{id:[0-9]+}", h.GetAutoscan).Methods("GET")
	api.HandleFunc("/autoscans/{id:[0-9]+}", h.DeleteAutoscan).Methods("DELETE")
	api.HandleFunc("/autoscans/{id:[0-9]+}/rescan", h.TriggerRescan).Methods("POST")
	api.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id:[0-9]+}", h.CancelTask).Methods("DELETE")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return &testEnv{router: r, h: h, st: st, manager: manager, mediaDir: mediaDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// addMediaFile imports one file synchronously and returns its object ID.
func (e *testEnv) addMediaFile(t *testing.T, name string) int64 {
	t.Helper()
	path := filepath.Join(e.mediaDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := e.manager.AddFile(context.Background(), path, false)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Valid() {
		t.Fatalf("%s was not imported", name)
	}
	return int64(id)
}

func waitUntil(t *testing.T, what string, cond func() bool) {
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

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != statusStarting || resp.Ready {
		t.Errorf("before ready: %+v", resp)
	}

	env.h.SetReady()
	rec = env.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("after ready: status = %d, want 200", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("after ready: %+v", resp)
	}
	if resp.Version == "" || resp.GoVersion == "" {
		t.Error("build info missing from health response")
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, "GET", "/livez", nil); rec.Code != http.StatusOK {
		t.Errorf("livez = %d, want 200", rec.Code)
	}
	if rec := env.do(t, "HEAD", "/livez", nil); rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD livez = %d with %d body bytes", rec.Code, rec.Body.Len())
	}

	if rec := env.do(t, "GET", "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d, want 503", rec.Code)
	}
	env.h.SetReady()
	if rec := env.do(t, "GET", "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz after ready = %d, want 200", rec.Code)
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info startup.BuildInfo
	decodeBody(t, rec, &info)
	if info.Version == "" || info.GoVersion == "" {
		t.Errorf("build info = %+v", info)
	}
}

func TestGetObject(t *testing.T) {
	env := newTestEnv(t)
	id := env.addMediaFile(t, "photo.jpg")

	rec := env.do(t, "GET", fmt.Sprintf("/api/objects/%d", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ObjectResponse
	decodeBody(t, rec, &resp)
	if resp.ID != id || resp.Title != "photo" || resp.Virtual {
		t.Errorf("object = %+v", resp)
	}

	if rec := env.do(t, "GET", "/api/objects/99999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing object = %d, want 404", rec.Code)
	}
}

func TestUpdateObject(t *testing.T) {
	env := newTestEnv(t)
	id := env.addMediaFile(t, "photo.jpg")

	rec := env.do(t, "PATCH", fmt.Sprintf("/api/objects/%d", id), map[string]interface{}{
		"title":    "Vacation",
		"metadata": map[string]string{"description": "beach"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp ObjectResponse
	decodeBody(t, rec, &resp)
	if resp.Title != "Vacation" || resp.Metadata["description"] != "beach" {
		t.Errorf("updated object = %+v", resp)
	}

	// An empty title leaves the stored title alone.
	rec = env.do(t, "PATCH", fmt.Sprintf("/api/objects/%d", id), map[string]interface{}{
		"title": "",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("no-op edit = %d, want 200", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if resp.Title != "Vacation" {
		t.Errorf("empty title blanked the stored title: %+v", resp)
	}

	if rec := env.do(t, "PATCH", "/api/objects/99999", map[string]interface{}{"title": "x"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing object = %d, want 404", rec.Code)
	}
}

func TestBrowseObject(t *testing.T) {
	env := newTestEnv(t)
	env.addMediaFile(t, "photo.jpg")

	// Root has the filesystem branch plus the virtual layout branch.
	rec := env.do(t, "GET", "/api/objects/0/children", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ParentID int64            `json:"parentId"`
		Children []ObjectResponse `json:"children"`
	}
	decodeBody(t, rec, &resp)
	if resp.ParentID != 0 || len(resp.Children) == 0 {
		t.Errorf("browse root = %+v", resp)
	}
}

func TestDeleteObject(t *testing.T) {
	env := newTestEnv(t)
	id := env.addMediaFile(t, "photo.jpg")

	rec := env.do(t, "DELETE", fmt.Sprintf("/api/objects/%d", id), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		TaskID uint64 `json:"taskId"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "queued" || resp.TaskID == 0 {
		t.Errorf("delete response = %+v", resp)
	}

	waitUntil(t, "queued removal", func() bool {
		r := env.do(t, "GET", fmt.Sprintf("/api/objects/%d", id), nil)
		return r.Code == http.StatusNotFound
	})
}

func TestDeleteObjectProtectsRoots(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"0", "1"} {
		if rec := env.do(t, "DELETE", "/api/objects/"+id, nil); rec.Code != http.StatusForbidden {
			t.Errorf("delete root %s = %d, want 403", id, rec.Code)
		}
	}
}

func TestMarkPlayedAndLastPlayed(t *testing.T) {
	env := newTestEnv(t)
	first := env.addMediaFile(t, "a.jpg")
	second := env.addMediaFile(t, "b.jpg")

	for _, id := range []int64{first, second} {
		if rec := env.do(t, "POST", fmt.Sprintf("/api/objects/%d/played", id), nil); rec.Code != http.StatusOK {
			t.Fatalf("mark played %d = %d, want 200", id, rec.Code)
		}
	}

	rec := env.do(t, "GET", "/api/last-played", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var played []ObjectResponse
	decodeBody(t, rec, &played)
	if len(played) != 2 || played[0].ID != second || played[1].ID != first {
		t.Errorf("last played = %+v", played)
	}
	if !played[0].Played {
		t.Error("played flag not set in response")
	}

	// Containers cannot be played.
	if rec := env.do(t, "POST", "/api/objects/0/played", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("play container = %d, want 400", rec.Code)
	}
	if rec := env.do(t, "POST", "/api/objects/99999/played", nil); rec.Code != http.StatusNotFound {
		t.Errorf("play missing = %d, want 404", rec.Code)
	}
}

func TestImportPath(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(env.mediaDir, "import.jpg")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "POST", "/api/import", map[string]interface{}{"path": path})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	waitUntil(t, "queued import", func() bool {
		_, err := env.st.FindObjectIDByPath(context.Background(), path)
		return err == nil
	})

	if rec := env.do(t, "POST", "/api/import", map[string]interface{}{}); rec.Code != http.StatusBadRequest {
		t.Errorf("import without path = %d, want 400", rec.Code)
	}
}

func TestAutoscanLifecycle(t *testing.T) {
	env := newTestEnv(t)

	location := t.TempDir()
	rec := env.do(t, "POST", "/api/autoscans", map[string]interface{}{
		"location":   location,
		"mode":       "timed",
		"recursive":  true,
		"persistent": true,
		"interval":   "1h",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	var created AutoscanResponse
	decodeBody(t, rec, &created)
	if created.Location != location || created.Mode != "timed" || created.Interval != "1h0m0s" {
		t.Errorf("created = %+v", created)
	}
	if created.ObjectID <= 1 {
		t.Errorf("created autoscan has no container: %+v", created)
	}

	rec = env.do(t, "GET", "/api/autoscans", nil)
	var list []AutoscanResponse
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].ScanID != created.ScanID {
		t.Errorf("list = %+v", list)
	}

	rec = env.do(t, "GET", fmt.Sprintf("/api/autoscans/%d", created.ScanID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get = %d, want 200", rec.Code)
	}
	var got AutoscanResponse
	decodeBody(t, rec, &got)
	if got.ScanID != created.ScanID || got.Location != location {
		t.Errorf("get = %+v", got)
	}

	// A nested autoscan is refused.
	sub := filepath.Join(location, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	rec = env.do(t, "POST", "/api/autoscans", map[string]interface{}{
		"location": sub, "mode": "timed", "interval": "1h",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("nested create = %d, want 409", rec.Code)
	}

	rec = env.do(t, "POST", fmt.Sprintf("/api/autoscans/%d/rescan", created.ScanID), nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("rescan = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "DELETE", fmt.Sprintf("/api/autoscans/%d", created.ScanID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete = %d, want 200", rec.Code)
	}
	if rec := env.do(t, "GET", fmt.Sprintf("/api/autoscans/%d", created.ScanID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreateAutoscanValidation(t *testing.T) {
	env := newTestEnv(t)
	location := t.TempDir()

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing location", map[string]interface{}{"mode": "timed", "interval": "1h"}},
		{"bad mode", map[string]interface{}{"location": location, "mode": "psychic"}},
		{"timed without interval", map[string]interface{}{"location": location, "mode": "timed"}},
		{"negative interval", map[string]interface{}{"location": location, "mode": "timed", "interval": "-5m"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := env.do(t, "POST", "/api/autoscans", tc.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTriggerRescanUnknownID(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, "POST", "/api/autoscans/42/rescan", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListTasksIdle(t *testing.T) {
	env := newTestEnv(t)

	// Wait for any startup work to drain before asserting idle.
	waitUntil(t, "idle scheduler", func() bool {
		return env.manager.Scheduler().Current() == nil
	})

	rec := env.do(t, "GET", "/api/tasks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tasks []map[string]interface{}
	decodeBody(t, rec, &tasks)
	if len(tasks) != 0 {
		t.Errorf("idle task list = %+v", tasks)
	}
}

func TestCancelTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, "DELETE", "/api/tasks/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	env.addMediaFile(t, "a.jpg")
	env.addMediaFile(t, "b.mp4")

	rec := env.do(t, "GET", "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats StatsResponse
	decodeBody(t, rec, &stats)
	if stats.TotalItems < 2 || stats.TotalImages != 1 || stats.TotalVideos != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalContainers < 2 {
		t.Errorf("container count = %d, want at least the seeded roots", stats.TotalContainers)
	}
}
