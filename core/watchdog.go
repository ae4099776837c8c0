package orchestration

import (
	"sync"
	"time"
)

// silenceWatchdog is a single-shot timer. Each arm carries a generation that
// is delivered on fired when the timer elapses.
type silenceWatchdog struct {
	window time.Duration
	fired  chan uint64
	done   chan struct{}

	timer *time.Timer
	mu    sync.Mutex
}

func newSilenceWatchdog(window time.Duration) *silenceWatchdog {
	return &silenceWatchdog{
		window: window,
		fired:  make(chan uint64, 1),
		done:   make(chan struct{}),
	}
}

func (w *silenceWatchdog) arm(generation uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, func() {
		select {
		case w.fired <- generation:
		case <-w.done:
		}
	})
}

func (w *silenceWatchdog) cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *silenceWatchdog) close() {
	w.cancel()
	close(w.done)
}
