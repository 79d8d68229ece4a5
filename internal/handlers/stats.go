package handlers

import "net/http"

// StatsResponse summarizes the library contents.
type StatsResponse struct {
	TotalItems      int `json:"totalItems"`
	TotalContainers int `json:"totalContainers"`
	TotalImages     int `json:"totalImages"`
	TotalVideos     int `json:"totalVideos"`
	TotalAudio      int `json:"totalAudio"`
	TotalPlaylists  int `json:"totalPlaylists"`
}

// GetStats returns library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.store.GetStats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{
		TotalItems:      stats.TotalItems,
		TotalContainers: stats.TotalContainers,
		TotalImages:     stats.TotalImages,
		TotalVideos:     stats.TotalVideos,
		TotalAudio:      stats.TotalAudio,
		TotalPlaylists:  stats.TotalPlaylists,
	})
}
