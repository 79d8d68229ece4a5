package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ListTasks returns the current task plus everything queued behind it.
func (h *Handlers) ListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := h.manager.Scheduler().Tasks()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tasks)
}

// CancelTask invalidates a queued or running task. Tasks marked not
// cancellable are refused.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid task ID", http.StatusBadRequest)
		return
	}

	for _, info := range h.manager.Scheduler().Tasks() {
		if info.ID == taskID {
			if !info.Cancellable {
				writeJSONError(w, "task is not cancellable", http.StatusConflict)
				return
			}
			h.manager.Scheduler().Invalidate(taskID)
			writeJSONStatus(w, "cancelled")
			return
		}
	}
	writeJSONError(w, "task not found", http.StatusNotFound)
}
