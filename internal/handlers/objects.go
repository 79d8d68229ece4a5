package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-sync/internal/content"
	"media-sync/internal/object"
	"media-sync/internal/store"
)

// ObjectResponse is the JSON form of one tree node.
type ObjectResponse struct {
	ID         int64             `json:"id"`
	ParentID   int64             `json:"parentId"`
	RefID      int64             `json:"refId,omitempty"`
	Type       string            `json:"type"`
	Class      string            `json:"class"`
	Title      string            `json:"title"`
	Location   string            `json:"location,omitempty"`
	Size       int64             `json:"size,omitempty"`
	ModTime    string            `json:"modTime,omitempty"`
	MimeType   string            `json:"mimeType,omitempty"`
	ChildCount int               `json:"childCount,omitempty"`
	Virtual    bool              `json:"virtual"`
	Played     bool              `json:"played"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ArtPath    string            `json:"artPath,omitempty"`
}

func (h *Handlers) toResponse(r *http.Request, obj *object.Object) ObjectResponse {
	resp := ObjectResponse{
		ID:         int64(obj.ID),
		ParentID:   int64(obj.ParentID),
		Type:       string(obj.Type),
		Class:      string(obj.Class),
		Title:      obj.Title,
		Location:   obj.Location,
		Size:       obj.Size,
		MimeType:   obj.MimeType,
		ChildCount: obj.ChildCount,
		Virtual:    obj.Virtual,
		Played:     obj.HasFlag(object.FlagPlayed),
		Metadata:   obj.Metadata,
	}
	if obj.RefID.Valid() {
		resp.RefID = int64(obj.RefID)
	}
	if !obj.ModTime.IsZero() {
		resp.ModTime = obj.ModTime.Format("2006-01-02T15:04:05Z07:00")
	}
	if art, ok, err := h.manager.ResolveArt(r.Context(), obj); err == nil && ok {
		resp.ArtPath = art.Location
	}
	return resp
}

func objectIDParam(r *http.Request) (object.ID, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return object.InvalidID, err
	}
	return object.ID(id), nil
}

// GetObject returns a single object by ID.
func (h *Handlers) GetObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		writeJSONError(w, "invalid object ID", http.StatusBadRequest)
		return
	}

	obj, err := h.store.LoadObject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "object not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to load object", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.toResponse(r, obj))
}

// UpdateObject applies a partial edit to an object. Fields omitted from
// the request body are left as stored; a metadata value of "" removes
// that key.
func (h *Handlers) UpdateObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		writeJSONError(w, "invalid object ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Title    string            `json:"title"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	edit := content.ObjectEdit{Title: req.Title, Metadata: req.Metadata}
	if err := h.manager.UpdateObject(r.Context(), id, edit); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "object not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to update object", http.StatusInternalServerError)
		return
	}

	obj, err := h.store.LoadObject(r.Context(), id)
	if err != nil {
		writeJSONError(w, "failed to load object", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.toResponse(r, obj))
}

// BrowseObject lists the children of a container.
func (h *Handlers) BrowseObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		writeJSONError(w, "invalid object ID", http.StatusBadRequest)
		return
	}

	children, err := h.store.ListChildren(r.Context(), id)
	if err != nil {
		writeJSONError(w, "failed to list children", http.StatusInternalServerError)
		return
	}

	out := make([]ObjectResponse, 0, len(children))
	for _, child := range children {
		out = append(out, h.toResponse(r, child))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"parentId": int64(id),
		"children": out,
	})
}

// DeleteObject removes an object. A container needs ?recursive=true unless
// it is empty. The removal runs on the worker queue.
func (h *Handlers) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		writeJSONError(w, "invalid object ID", http.StatusBadRequest)
		return
	}
	if id.Forbidden() {
		writeJSONError(w, "cannot remove protected container", http.StatusForbidden)
		return
	}
	recursive := r.URL.Query().Get("recursive") == "true"

	taskID := h.manager.RemoveObjectAsync(id, recursive)
	if taskID == 0 {
		writeJSONError(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"status": "queued",
		"taskId": taskID,
	})
}

// MarkPlayed flags an item as played and records it in the recent list.
func (h *Handlers) MarkPlayed(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		writeJSONError(w, "invalid object ID", http.StatusBadRequest)
		return
	}

	if err := h.manager.NotifyPlayed(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "object not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetLastPlayed returns the recently played items, most recent first.
func (h *Handlers) GetLastPlayed(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.LastPlayed()

	out := make([]ObjectResponse, 0, len(ids))
	for _, id := range ids {
		obj, err := h.store.LoadObject(r.Context(), id)
		if err != nil {
			// Dropped between play and listing; skip.
			continue
		}
		out = append(out, h.toResponse(r, obj))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

// ImportPath queues an import of a filesystem path.
func (h *Handlers) ImportPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	taskID := h.manager.AddFileAsync(req.Path, req.Recursive, false)
	if taskID == 0 {
		writeJSONError(w, "service shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"status": "queued",
		"taskId": taskID,
	})
}
