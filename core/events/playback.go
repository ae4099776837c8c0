package events

const (
	// KindPlaybackStarted identifies the start of an utterance on the device.
	KindPlaybackStarted Kind = "playback.started"
	// KindPlaybackEnded identifies normal completion of an utterance.
	KindPlaybackEnded Kind = "playback.ended"
	// KindPlaybackFailed identifies a device level playback failure.
	KindPlaybackFailed Kind = "playback.failed"
	// KindVoicesChanged identifies the one-time readiness of the voice list.
	KindVoicesChanged Kind = "playback.voices_changed"
)

// PlaybackStarted marks the device starting to speak an utterance.
type PlaybackStarted struct {
	Base
	Utterance uint64
}

// NewPlaybackStarted creates a playback started event.
func NewPlaybackStarted(utterance uint64) PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted), Utterance: utterance}
}

// PlaybackEnded marks normal completion of an utterance.
type PlaybackEnded struct {
	Base
	Utterance uint64
}

// NewPlaybackEnded creates a playback ended event.
func NewPlaybackEnded(utterance uint64) PlaybackEnded {
	return PlaybackEnded{Base: NewBase(KindPlaybackEnded), Utterance: utterance}
}

// PlaybackFailed carries the device error code for an utterance.
type PlaybackFailed struct {
	Base
	Utterance uint64
	Code      string
}

// NewPlaybackFailed creates a playback failure event.
func NewPlaybackFailed(utterance uint64, code string) PlaybackFailed {
	return PlaybackFailed{Base: NewBase(KindPlaybackFailed), Utterance: utterance, Code: code}
}

// VoicesChanged marks the voice list becoming available.
type VoicesChanged struct{ Base }

// NewVoicesChanged creates a voices changed event.
func NewVoicesChanged() VoicesChanged {
	return VoicesChanged{Base: NewBase(KindVoicesChanged)}
}
