package speechio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-interrogation/core/audio"
	"github.com/koscakluka/ema-interrogation/core/events"
	"github.com/koscakluka/ema-interrogation/core/speechtotext"
)

const (
	deviceEventBuffer = 16
	// progressReserve slots of a device event buffer are kept for session
	// results. Progress events that would use them are dropped.
	progressReserve = 4
)

type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

type Transcriber interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
}

// Recognizer is a CaptureDevice that streams microphone audio to a
// transcriber. A session ends with the first complete transcript.
type Recognizer struct {
	input       AudioInput
	transcriber Transcriber

	events chan events.Event

	capturing     bool
	session       uint64
	heard         []string
	activeSession atomic.Uint64
	mu            sync.Mutex
}

func NewRecognizer(input AudioInput, transcriber Transcriber) *Recognizer {
	return &Recognizer{
		input:       input,
		transcriber: transcriber,
		events:      make(chan events.Event, deviceEventBuffer),
	}
}

func (r *Recognizer) Events() <-chan events.Event {
	return r.events
}

// Start opens a new capture session. Results of earlier sessions that were
// not consumed yet are discarded.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capturing {
		return nil
	}

	r.drain()
	r.session++
	r.heard = nil
	session := r.session

	if err := r.transcriber.Transcribe(ctx,
		speechtotext.WithEncodingInfo(r.input.EncodingInfo()),
		speechtotext.WithSpeechStartedCallback(func() {
			r.partial(session, "")
		}),
		speechtotext.WithPartialTranscriptionCallback(func(segment string) {
			r.partial(session, segment)
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			r.finish(session, events.NewCaptureTranscript(transcript))
		}),
		speechtotext.WithErrorCallback(func(err error) {
			logger.Warn("transcription stream failed", "error", err)
			r.finish(session, events.NewCaptureFailed(transcriberErrorCode(err)))
		}),
	); err != nil {
		return &DeviceError{Code: transcriberErrorCode(err), Err: err}
	}

	r.capturing = true
	r.activeSession.Store(session)
	if err := r.input.StartCapture(ctx, func(audio []byte) {
		if r.activeSession.Load() != session {
			return
		}
		if err := r.transcriber.SendAudio(audio); err != nil {
			logger.Debug("failed to send audio to transcriber", "error", err)
		}
	}); err != nil {
		r.capturing = false
		r.activeSession.Store(0)
		if stopErr := r.transcriber.StopStream(); stopErr != nil {
			logger.Debug("failed to stop transcription stream", "error", stopErr)
		}
		return &DeviceError{Code: CodeAudioCapture, Err: err}
	}

	return nil
}

// Stop ends the current session without emitting an event.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return nil
	}

	return r.stopLocked()
}

func (r *Recognizer) stopLocked() error {
	r.capturing = false
	r.activeSession.Store(0)
	return errors.Join(r.input.StopCapture(), r.transcriber.StopStream())
}

// partial reports the text heard so far. Speech starting is reported with
// an empty segment so the human is known to be talking before anything is
// finalized.
func (r *Recognizer) partial(session uint64, segment string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing || r.session != session {
		return
	}

	if segment != "" {
		r.heard = append(r.heard, segment)
	}
	emit(r.events, events.NewCapturePartial(strings.Join(r.heard, " ")))
}

func (r *Recognizer) finish(session uint64, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing || r.session != session {
		return
	}

	if err := r.stopLocked(); err != nil {
		logger.Debug("failed to stop capture after result", "error", err)
	}
	emit(r.events, event)
}

func (r *Recognizer) drain() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

func transcriberErrorCode(err error) string {
	switch {
	case errors.Is(err, speechtotext.ErrUnauthorized):
		return CodeNotAllowed
	case errors.Is(err, speechtotext.ErrUnreachable):
		return CodeNetwork
	}
	return CodeAborted
}

func emit(ch chan events.Event, event events.Event) {
	switch event.(type) {
	case events.CapturePartial, events.PlaybackStarted:
		if len(ch) >= cap(ch)-progressReserve {
			logger.Debug("progress event dropped, consumer behind", "kind", event.Kind())
			return
		}
	}

	select {
	case ch <- event:
	default:
		logger.Error("device event dropped, consumer too slow", "kind", event.Kind())
	}
}
