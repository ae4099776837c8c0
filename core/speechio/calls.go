package speechio

import "sync"

// callQueue runs device calls one at a time, in submission order, on its own
// goroutine. Capture and playback share one queue so a stop always reaches
// its device before a later start of the other one.
type callQueue struct {
	pending []func()
	closed  bool
	mu      sync.Mutex

	wake chan struct{}
	done chan struct{}
}

func newCallQueue() *callQueue {
	q := &callQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// do queues call. It never blocks; calls queued after close are dropped.
func (q *callQueue) do(call func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, call)
	q.mu.Unlock()
	q.signal()
}

func (q *callQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *callQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		call := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		call()
	}
}

// close runs the calls already queued and waits for them to finish.
func (q *callQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	<-q.done
}
