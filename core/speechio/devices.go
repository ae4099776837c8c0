package speechio

import (
	"context"

	"github.com/koscakluka/ema-interrogation/core/events"
)

// CaptureDevice turns speech into text. Events emits any number of
// CapturePartial and then at most one of CaptureTranscript, CaptureFailed or
// CaptureEnded per capture session.
type CaptureDevice interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan events.Event
}

// PlaybackDevice speaks utterances. Events emits PlaybackStarted,
// PlaybackEnded and PlaybackFailed tagged with the utterance id, and
// VoicesChanged once the voice list is known.
type PlaybackDevice interface {
	Speak(ctx context.Context, utterance Utterance) error
	Cancel() error
	Voices() []Voice
	Events() <-chan events.Event
}

type Voice struct {
	ID       string
	Name     string
	Language string
}

// Utterance is a single playback attempt. A nil Voice selects the device
// default.
type Utterance struct {
	ID    uint64
	Text  string
	Voice *Voice
	Rate  float64
	Pitch float64
}

// PlaybackRequest asks the controller to speak Text. Voice is matched as a
// substring of the device voice names. OnComplete fires exactly once when
// the request ends normally or with a terminal error, unless the request is
// superseded by a newer one.
type PlaybackRequest struct {
	Text       string
	Voice      string
	Rate       float64
	Pitch      float64
	OnComplete func()
}
