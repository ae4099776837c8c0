package orchestration

import "time"

type CoordinatorOption func(*Coordinator)

// WithSessionID sets the opaque session identifier sent with every agent
// call. A random one is used when unset.
func WithSessionID(sessionID string) CoordinatorOption {
	return func(c *Coordinator) {
		if sessionID != "" {
			c.sessionID = sessionID
		}
	}
}

// WithOpeningUtterance seeds the transcript with an agent line. It is not
// spoken until the human replays it.
func WithOpeningUtterance(utterance Utterance) CoordinatorOption {
	return func(c *Coordinator) {
		c.state.transcript = append(c.state.transcript, utterance)
	}
}

// WithChangeCallback registers a function called with a fresh View after
// every handled event. It runs on the coordinator goroutine and must not
// block.
func WithChangeCallback(onChange func(View)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onChange = onChange
	}
}

func withSilenceWindow(window time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.silenceWindow = window
	}
}
