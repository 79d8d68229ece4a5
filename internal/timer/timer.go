package timer

import (
	"sync"
	"time"

	"media-sync/internal/logging"
)

// Parameter identifies why a subscription fired. It is handed back to the
// callback untouched.
type Parameter struct {
	// Kind distinguishes subscription families (e.g. "autoscan").
	Kind string
	// ScanID is the registry slot of the autoscan directory, if any.
	ScanID int
}

// Callback is invoked on the timer's own goroutine for every tick. It must
// not block; long work belongs on the task scheduler.
type Callback func(p Parameter)

// Token identifies a subscription for Unsubscribe.
type Token int64

type subscription struct {
	stop chan struct{}
}

// Timer drives periodic and one-shot subscriptions, each on its own
// goroutine. Callbacks only enqueue work; they never scan inline.
type Timer struct {
	mu     sync.Mutex
	subs   map[Token]*subscription
	next   Token
	closed bool
	wg     sync.WaitGroup
}

// New creates a timer facility.
func New() *Timer {
	return &Timer{subs: make(map[Token]*subscription)}
}

// Subscribe arms a subscription firing every interval, or exactly once
// after interval when once is set. The returned token cancels it.
func (t *Timer) Subscribe(interval time.Duration, once bool, param Parameter, cb Callback) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}

	t.next++
	token := t.next
	sub := &subscription{stop: make(chan struct{})}
	t.subs[token] = sub

	t.wg.Add(1)
	go t.run(token, sub, interval, once, param, cb)

	logging.Debug("Timer subscription %d armed: interval=%v once=%v kind=%s", token, interval, once, param.Kind)
	return token
}

func (t *Timer) run(token Token, sub *subscription, interval time.Duration, once bool, param Parameter, cb Callback) {
	defer t.wg.Done()

	if once {
		select {
		case <-time.After(interval):
			cb(param)
		case <-sub.stop:
		}
		t.mu.Lock()
		delete(t.subs, token)
		t.mu.Unlock()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cb(param)
		case <-sub.stop:
			return
		}
	}
}

// Unsubscribe cancels a subscription. Unknown tokens are ignored, so
// cancelling an already-fired one-shot is safe.
func (t *Timer) Unsubscribe(token Token) {
	t.mu.Lock()
	sub, ok := t.subs[token]
	if ok {
		delete(t.subs, token)
	}
	t.mu.Unlock()

	if ok {
		close(sub.stop)
	}
}

// Shutdown cancels all subscriptions and waits for their goroutines.
func (t *Timer) Shutdown() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for token, sub := range t.subs {
		close(sub.stop)
		delete(t.subs, token)
	}
	t.mu.Unlock()

	t.wg.Wait()
}
