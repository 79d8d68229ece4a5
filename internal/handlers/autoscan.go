package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-sync/internal/autoscan"
)

// AutoscanResponse is the JSON form of one autoscan directory.
type AutoscanResponse struct {
	ScanID     int    `json:"scanId"`
	Location   string `json:"location"`
	Mode       string `json:"mode"`
	Recursive  bool   `json:"recursive"`
	Hidden     bool   `json:"hidden"`
	Persistent bool   `json:"persistent"`
	Interval   string `json:"interval,omitempty"`
	ObjectID   int64  `json:"objectId"`
	Active     bool   `json:"active"`
}

func toAutoscanResponse(d *autoscan.Directory) AutoscanResponse {
	resp := AutoscanResponse{
		ScanID:     d.ScanID(),
		Location:   d.Location(),
		Mode:       string(d.Mode()),
		Recursive:  d.Recursive(),
		Hidden:     d.Hidden(),
		Persistent: d.Persistent(),
		ObjectID:   int64(d.ObjectID()),
		Active:     d.Busy(),
	}
	if d.Mode() == autoscan.ModeTimed {
		resp.Interval = d.Interval().String()
	}
	return resp
}

// ListAutoscans returns all registered autoscan directories.
func (h *Handlers) ListAutoscans(w http.ResponseWriter, _ *http.Request) {
	dirs := h.manager.Autoscans()

	out := make([]AutoscanResponse, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, toAutoscanResponse(d))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

// GetAutoscan returns one autoscan directory by scan ID.
func (h *Handlers) GetAutoscan(w http.ResponseWriter, r *http.Request) {
	scanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid scan ID", http.StatusBadRequest)
		return
	}

	d := h.manager.GetAutoscan(scanID)
	if d == nil {
		writeJSONError(w, "autoscan not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toAutoscanResponse(d))
}

// CreateAutoscan registers a new autoscan directory (or reconfigures the
// one already covering the location).
func (h *Handlers) CreateAutoscan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location   string `json:"location"`
		Mode       string `json:"mode"`
		Recursive  bool   `json:"recursive"`
		Hidden     bool   `json:"hidden"`
		Persistent bool   `json:"persistent"`
		Interval   string `json:"interval"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Location == "" {
		writeJSONError(w, "location is required", http.StatusBadRequest)
		return
	}

	mode := autoscan.Mode(req.Mode)
	if mode != autoscan.ModeTimed && mode != autoscan.ModeWatch {
		writeJSONError(w, "mode must be \"timed\" or \"watch\"", http.StatusBadRequest)
		return
	}

	var interval time.Duration
	if mode == autoscan.ModeTimed {
		var err error
		interval, err = time.ParseDuration(req.Interval)
		if err != nil || interval <= 0 {
			writeJSONError(w, "timed mode requires a positive interval", http.StatusBadRequest)
			return
		}
	}

	d := autoscan.New(req.Location, mode, req.Recursive, req.Hidden, req.Persistent, interval)
	if err := h.manager.SetAutoscanDirectory(r.Context(), d); err != nil {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toAutoscanResponse(d))
}

// DeleteAutoscan removes an autoscan directory.
func (h *Handlers) DeleteAutoscan(w http.ResponseWriter, r *http.Request) {
	scanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid scan ID", http.StatusBadRequest)
		return
	}

	if err := h.manager.RemoveAutoscanDirectory(r.Context(), scanID); err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSONStatus(w, "removed")
}

// TriggerRescan queues a rescan of an autoscan directory, optionally
// limited to a subdirectory given in the request body.
func (h *Handlers) TriggerRescan(w http.ResponseWriter, r *http.Request) {
	scanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid scan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	// An empty body means the whole autoscan.
	_ = decodeJSON(r, &req)

	if err := h.manager.RescanDirectory(scanID, req.Path); err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "queued"})
}
