package metrics

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeStatsProvider struct {
	stats Stats
	calls atomic.Int64
}

func (f *fakeStatsProvider) GetStats() Stats {
	f.calls.Add(1)
	return f.stats
}

func TestNewCollector(t *testing.T) {
	provider := &fakeStatsProvider{}
	collector := NewCollector(provider, time.Minute)

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}
	if collector.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", collector.interval)
	}
}

func TestCollectorCollect(t *testing.T) {
	provider := &fakeStatsProvider{
		stats: Stats{
			TotalItems:      10,
			TotalContainers: 4,
			TotalImages:     5,
			TotalVideos:     3,
			TotalAudio:      1,
			TotalPlaylists:  1,
		},
	}
	collector := NewCollector(provider, time.Minute)

	collector.collect()

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("GetStats called %d times, want 1", got)
	}
}

func TestCollectorCollectNilProvider(t *testing.T) {
	collector := NewCollector(nil, time.Minute)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() with nil provider panicked: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &fakeStatsProvider{}
	collector := NewCollector(provider, 10*time.Millisecond)

	collector.Start()

	// The loop collects once immediately and then on each tick.
	time.Sleep(35 * time.Millisecond)
	collector.Stop()

	calls := provider.calls.Load()
	if calls < 2 {
		t.Errorf("GetStats called %d times after start, want at least 2", calls)
	}

	// No further collections after Stop.
	time.Sleep(30 * time.Millisecond)
	if now := provider.calls.Load(); now > calls+1 {
		t.Errorf("GetStats still being called after Stop: %d -> %d", calls, now)
	}
}
