package handlers

import (
	"sync/atomic"
	"time"

	"media-sync/internal/content"
	"media-sync/internal/startup"
	"media-sync/internal/store"
)

type Handlers struct {
	store     *store.Store
	manager   *content.Manager
	mediaDir  string
	startTime time.Time
	ready     atomic.Bool
}

func New(st *store.Store, manager *content.Manager, config *startup.Config) *Handlers {
	return &Handlers{
		store:     st,
		manager:   manager,
		mediaDir:  config.MediaDir,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe once startup has finished.
func (h *Handlers) SetReady() {
	h.ready.Store(true)
}
