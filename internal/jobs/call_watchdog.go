package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// CallExpirer is implemented by the call server.
type CallExpirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (bool, error)
}

// CallWatchdog periodically fails calls that stay Active for longer than
// the maximum call duration, so a call that never reports back does not
// hold the single call slot forever.
type CallWatchdog struct {
	server   CallExpirer
	maxAge   time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCallWatchdog creates a watchdog that checks every interval.
func NewCallWatchdog(server CallExpirer, maxAge, interval time.Duration) *CallWatchdog {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &CallWatchdog{
		server:   server,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Start begins the periodic check. It is a no-op when already running or
// when maxAge is not positive.
func (w *CallWatchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		log.Println("Call watchdog already running")
		return
	}
	if w.maxAge <= 0 {
		log.Println("⏰ Call watchdog disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)

	log.Printf("⏰ Call watchdog started (max call duration %s)", w.maxAge)
}

// Stop halts the check and waits for it to exit.
func (w *CallWatchdog) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("Call watchdog stopped")
}

func (w *CallWatchdog) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *CallWatchdog) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	if _, err := w.server.ExpireStale(checkCtx, w.maxAge); err != nil {
		log.Printf("❌ Error expiring stale call: %v", err)
	}
}
