package speechio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-interrogation/core/audio"
	"github.com/koscakluka/ema-interrogation/core/events"
	"github.com/koscakluka/ema-interrogation/core/speechtotext"
)

type audioInputStub struct {
	mu       sync.Mutex
	startErr error
	onAudio  func([]byte)
	stops    int
}

func (a *audioInputStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (a *audioInputStub) StartCapture(_ context.Context, onAudio func([]byte)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.onAudio = onAudio
	return nil
}

func (a *audioInputStub) StopCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	return nil
}

func (a *audioInputStub) feed(chunk []byte) {
	a.mu.Lock()
	onAudio := a.onAudio
	a.mu.Unlock()
	if onAudio != nil {
		onAudio(chunk)
	}
}

type transcriberStub struct {
	mu            sync.Mutex
	transcribeErr error
	options       []speechtotext.TranscriptionOptions
	audio         [][]byte
	streamStops   int
}

func (s *transcriberStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcribeErr != nil {
		return s.transcribeErr
	}
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.options = append(s.options, options)
	return nil
}

func (s *transcriberStub) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, audio)
	return nil
}

func (s *transcriberStub) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamStops++
	return nil
}

func (s *transcriberStub) session(t *testing.T, i int) speechtotext.TranscriptionOptions {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.options) <= i {
		t.Fatalf("expected transcription session %d to be opened", i)
	}
	return s.options[i]
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for device event")
		return nil
	}
}

func expectNoEvent(t *testing.T, ch <-chan events.Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("expected no event, got %s", event.Kind())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecognizerEmitsSingleTranscriptPerSession(t *testing.T) {
	input := &audioInputStub{}
	transcriber := &transcriberStub{}
	r := NewRecognizer(input, transcriber)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	input.feed([]byte{1, 2})

	options := transcriber.session(t, 0)
	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected input encoding to be forwarded, got %+v", options.EncodingInfo)
	}
	options.TranscriptionCallback("John Smith")
	options.TranscriptionCallback("ignored")

	event := nextEvent(t, r.Events())
	transcript, ok := event.(events.CaptureTranscript)
	if !ok || transcript.Text != "John Smith" {
		t.Fatalf("expected transcript event, got %#v", event)
	}
	expectNoEvent(t, r.Events())

	input.feed([]byte{3})
	transcriber.mu.Lock()
	sent := len(transcriber.audio)
	stops := transcriber.streamStops
	transcriber.mu.Unlock()
	if sent != 1 {
		t.Fatalf("expected audio after the session to be dropped, got %d chunks", sent)
	}
	if stops != 1 || input.stops != 1 {
		t.Fatalf("expected session devices to be stopped once, got %d/%d", stops, input.stops)
	}
}

func TestRecognizerAccumulatesPartialTranscripts(t *testing.T) {
	transcriber := &transcriberStub{}
	r := NewRecognizer(&audioInputStub{}, transcriber)

	_ = r.Start(context.Background())
	options := transcriber.session(t, 0)
	options.SpeechStartedCallback()
	options.PartialTranscriptionCallback("John")
	options.PartialTranscriptionCallback("Smith")

	for _, expected := range []string{"", "John", "John Smith"} {
		event, ok := nextEvent(t, r.Events()).(events.CapturePartial)
		if !ok || event.Text != expected {
			t.Fatalf("expected partial %q, got %#v", expected, event)
		}
	}
	transcriber.mu.Lock()
	stops := transcriber.streamStops
	transcriber.mu.Unlock()
	if stops != 0 {
		t.Fatalf("expected partials to keep the session open, got %d stops", stops)
	}

	_ = r.Stop()
	_ = r.Start(context.Background())
	transcriber.session(t, 1).PartialTranscriptionCallback("again")
	if event, ok := nextEvent(t, r.Events()).(events.CapturePartial); !ok || event.Text != "again" {
		t.Fatalf("expected a fresh partial for the new session, got %#v", event)
	}
}

func TestRecognizerIgnoresResultsOfStoppedSessions(t *testing.T) {
	input := &audioInputStub{}
	transcriber := &transcriberStub{}
	r := NewRecognizer(input, transcriber)

	_ = r.Start(context.Background())
	first := transcriber.session(t, 0)
	if err := r.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = r.Start(context.Background())

	first.TranscriptionCallback("late")
	expectNoEvent(t, r.Events())

	transcriber.session(t, 1).TranscriptionCallback("current")
	if event, ok := nextEvent(t, r.Events()).(events.CaptureTranscript); !ok || event.Text != "current" {
		t.Fatalf("expected current session transcript, got %#v", event)
	}
}

func TestRecognizerStreamFailure(t *testing.T) {
	r := NewRecognizer(&audioInputStub{}, &transcriberStub{})
	transcriber := r.transcriber.(*transcriberStub)

	_ = r.Start(context.Background())
	transcriber.session(t, 0).ErrorCallback(fmt.Errorf("%w: dropped", speechtotext.ErrUnreachable))

	failed, ok := nextEvent(t, r.Events()).(events.CaptureFailed)
	if !ok || failed.Code != CodeNetwork {
		t.Fatalf("expected network failure, got %#v", failed)
	}
}

func TestRecognizerStartErrors(t *testing.T) {
	testCases := []struct {
		name        string
		input       *audioInputStub
		transcriber *transcriberStub
		code        string
	}{
		{
			name:        "unauthorized transcriber",
			input:       &audioInputStub{},
			transcriber: &transcriberStub{transcribeErr: speechtotext.ErrUnauthorized},
			code:        CodeNotAllowed,
		},
		{
			name:        "unreachable transcriber",
			input:       &audioInputStub{},
			transcriber: &transcriberStub{transcribeErr: speechtotext.ErrUnreachable},
			code:        CodeNetwork,
		},
		{
			name:        "microphone failure",
			input:       &audioInputStub{startErr: errors.New("no device")},
			transcriber: &transcriberStub{},
			code:        CodeAudioCapture,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			r := NewRecognizer(testCase.input, testCase.transcriber)

			err := r.Start(context.Background())
			if got := ErrorCode(err, ""); got != testCase.code {
				t.Fatalf("expected code %q, got %q (%v)", testCase.code, got, err)
			}
			if r.capturing {
				t.Fatalf("expected recognizer to stay idle")
			}
		})
	}
}

func TestRecognizerStartDiscardsUnconsumedEvents(t *testing.T) {
	transcriber := &transcriberStub{}
	r := NewRecognizer(&audioInputStub{}, transcriber)

	_ = r.Start(context.Background())
	transcriber.session(t, 0).TranscriptionCallback("unread")
	_ = r.Start(context.Background())

	expectNoEvent(t, r.Events())
}

func TestEmitKeepsRoomForSessionResults(t *testing.T) {
	ch := make(chan events.Event, deviceEventBuffer)
	for range 2 * deviceEventBuffer {
		emit(ch, events.NewCapturePartial("word"))
	}
	emit(ch, events.NewCaptureTranscript("all the words"))
	emit(ch, events.NewPlaybackEnded(1))

	var kinds []events.Kind
	for len(ch) > 0 {
		kinds = append(kinds, (<-ch).Kind())
	}
	if len(kinds) != deviceEventBuffer-progressReserve+2 {
		t.Fatalf("expected progress events to stop at the reserve, got %d events", len(kinds))
	}
	if kinds[len(kinds)-2] != events.KindCaptureTranscript || kinds[len(kinds)-1] != events.KindPlaybackEnded {
		t.Fatalf("expected session results to be delivered, got %v", kinds[len(kinds)-2:])
	}
}

func TestRecognizerDeliversTranscriptAfterManyPartials(t *testing.T) {
	transcriber := &transcriberStub{}
	r := NewRecognizer(&audioInputStub{}, transcriber)

	_ = r.Start(context.Background())
	options := transcriber.session(t, 0)
	for range 2 * deviceEventBuffer {
		options.PartialTranscriptionCallback("word")
	}
	options.TranscriptionCallback("word word")

	var last events.Event
	for len(r.events) > 0 {
		last = <-r.events
	}
	if transcript, ok := last.(events.CaptureTranscript); !ok || transcript.Text != "word word" {
		t.Fatalf("expected the transcript to follow the partials, got %#v", last)
	}
}
