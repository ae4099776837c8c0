package speechio

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/koscakluka/ema-interrogation/core/audio"
	"github.com/koscakluka/ema-interrogation/core/events"
	"github.com/koscakluka/ema-interrogation/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) (texttospeech.Speech, error)
	ListVoices(ctx context.Context) ([]texttospeech.Voice, error)
}

type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(mark string, callback func(string)) error
}

// Synthesizer is a PlaybackDevice that streams synthesized speech to an
// audio output. Rate and pitch are not supported by the synthesizers in use
// and are ignored.
type Synthesizer struct {
	tts    SpeechSynthesizer
	output AudioOutput

	events chan events.Event

	voices  []Voice
	current *synthesis
	mu      sync.Mutex
}

type synthesis struct {
	utterance uint64
	speech    texttospeech.Speech
	span      trace.Span
	started   bool
	bytes     int
}

func (sy *synthesis) fail(err error) {
	sy.span.RecordError(err)
	sy.span.SetStatus(codes.Error, err.Error())
	sy.span.End()
}

// NewSynthesizer creates the device and loads the voice list in the
// background. VoicesChanged is emitted once loading finishes, also when it
// fails, so parked playback falls back to the default voice.
func NewSynthesizer(ctx context.Context, tts SpeechSynthesizer, output AudioOutput) *Synthesizer {
	s := &Synthesizer{
		tts:    tts,
		output: output,
		events: make(chan events.Event, deviceEventBuffer),
	}
	go s.loadVoices(ctx)
	return s
}

func (s *Synthesizer) loadVoices(ctx context.Context) {
	ttsVoices, err := s.tts.ListVoices(ctx)
	if err != nil {
		logger.Warn("failed to load voices, using default voice", "error", err)
	}

	voices := make([]Voice, 0, len(ttsVoices))
	for _, v := range ttsVoices {
		voices = append(voices, Voice{ID: v.ID, Name: v.Name, Language: v.Language})
	}

	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
	emit(s.events, events.NewVoicesChanged())
}

func (s *Synthesizer) Events() <-chan events.Event {
	return s.events
}

func (s *Synthesizer) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Voice(nil), s.voices...)
}

// Speak starts streaming utterance to the output, replacing the current one.
// The lock is not held while the synthesizer connects, so Voices and Cancel
// stay available; an utterance cancelled while connecting is dropped once
// the connection is up.
func (s *Synthesizer) Speak(ctx context.Context, utterance Utterance) error {
	s.mu.Lock()
	s.cancelLocked()
	ctx, span := tracer.Start(ctx, "speak utterance", trace.WithAttributes(
		attribute.Int64("utterance.id", int64(utterance.ID)),
		attribute.Int("utterance.length", len(utterance.Text)),
	))
	current := &synthesis{utterance: utterance.ID, span: span}
	s.current = current
	s.mu.Unlock()

	opts := []texttospeech.TextToSpeechOption{
		texttospeech.WithEncodingInfo(s.output.EncodingInfo()),
		texttospeech.WithSpeechAudioCallback(func(audio []byte) { s.onAudio(current, audio) }),
		texttospeech.WithSpeechEndedCallback(func() { s.onSpeechEnded(current) }),
		texttospeech.WithErrorCallback(func(err error) { s.onError(current, err) }),
	}
	if utterance.Voice != nil {
		opts = append(opts, texttospeech.WithVoice(utterance.Voice.ID))
	}

	speech, err := s.tts.Synthesize(ctx, utterance.Text, opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != current {
		// Cancelled while connecting, the interruption was already reported.
		if speech != nil {
			return speech.Cancel()
		}
		return nil
	}
	if err != nil {
		s.current = nil
		current.fail(err)
		return &DeviceError{Code: synthesizerErrorCode(err), Err: err}
	}
	current.speech = speech

	return nil
}

func (s *Synthesizer) onAudio(current *synthesis, audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != current {
		return
	}

	if !current.started {
		current.started = true
		current.span.AddEvent("first audio")
		emit(s.events, events.NewPlaybackStarted(current.utterance))
	}
	current.bytes += len(audio)
	if err := s.output.SendAudio(audio); err != nil {
		logger.Warn("failed to send audio to output", "error", err)
	}
}

func (s *Synthesizer) onSpeechEnded(current *synthesis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != current {
		return
	}

	mark := strconv.FormatUint(current.utterance, 10)
	current.span.AddEvent("received mark", trace.WithAttributes(attribute.String("mark", mark)))
	if err := s.output.Mark(mark, func(string) { s.onPlayed(current) }); err != nil {
		s.current = nil
		current.fail(err)
		emit(s.events, events.NewPlaybackFailed(current.utterance, CodeAudioHardware))
	}
}

func (s *Synthesizer) onPlayed(current *synthesis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != current {
		return
	}

	s.current = nil
	current.span.AddEvent("mark played")
	current.span.End()
	logger.Debug("utterance played",
		"utterance", current.utterance,
		"duration", s.output.EncodingInfo().Duration(current.bytes))
	emit(s.events, events.NewPlaybackEnded(current.utterance))
}

func (s *Synthesizer) onError(current *synthesis, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != current {
		return
	}

	s.current = nil
	current.fail(err)
	s.output.ClearBuffer()
	emit(s.events, events.NewPlaybackFailed(current.utterance, synthesizerErrorCode(err)))
}

// Cancel stops the current utterance. The cancelled utterance reports an
// interrupted failure.
func (s *Synthesizer) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *Synthesizer) cancelLocked() error {
	current := s.current
	if current == nil {
		return nil
	}

	s.current = nil
	current.span.AddEvent("cancelled")
	current.span.End()
	s.output.ClearBuffer()
	emit(s.events, events.NewPlaybackFailed(current.utterance, CodeInterrupted))
	if current.speech != nil {
		return current.speech.Cancel()
	}
	return nil
}

func synthesizerErrorCode(err error) string {
	if errors.Is(err, texttospeech.ErrUnreachable) {
		return CodeNetwork
	}
	return CodeSynthesisFailed
}
