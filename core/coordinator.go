// Package orchestration runs the turn taking between a human and a remote
// dialogue agent.
//
// A Coordinator owns the conversation state. All state changes happen on the
// goroutine running Coordinator.Run, as the result of a pure transition from
// the current state and one event. Inputs from the presentation layer, device
// results, agent replies and silence watchdog fires are all events.
package orchestration

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-interrogation/core/agent"
	"github.com/koscakluka/ema-interrogation/core/events"
	"github.com/koscakluka/ema-interrogation/core/speechio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const coordinatorInboxCapacity = 10

var ErrAlreadyRunning = errors.New("coordinator already running")

type Agent interface {
	Chat(ctx context.Context, sessionID, message string) (agent.Reply, error)
}

// View is a snapshot of the conversation for presentation.
type View struct {
	Turn       Turn
	Listening  bool
	Transcript []Utterance
	TypedText  string
	Error      string
	// Stalled is set while the last agent call failed and nothing was
	// resubmitted yet.
	Stalled bool
}

type Coordinator struct {
	agent     Agent
	speech    *speechio.Controller
	sessionID string
	onChange  func(View)

	silenceWindow time.Duration
	watchdog      *silenceWatchdog

	state state
	mu    sync.RWMutex

	inbox chan events.Event
	// local holds events raised by controller callbacks while the loop is
	// handling another event. Only the loop goroutine touches it.
	local []events.Event

	running bool
	done    chan struct{}
	runMu   sync.Mutex
}

// NewCoordinator creates a coordinator talking to remote through speech. A
// nil speech controller runs the conversation text-only.
func NewCoordinator(remote Agent, speech *speechio.Controller, opts ...CoordinatorOption) *Coordinator {
	if speech == nil {
		speech = speechio.NewController(nil, nil)
	}

	c := &Coordinator{
		agent:         remote,
		speech:        speech,
		sessionID:     uuid.NewString(),
		silenceWindow: SilenceWindow,
		inbox:         make(chan events.Event, coordinatorInboxCapacity),
		done:          make(chan struct{}),
	}
	c.state.captureSupported = speech.CaptureSupported()
	for _, opt := range opts {
		opt(c)
	}
	c.watchdog = newSilenceWatchdog(c.silenceWindow)

	speech.SetCallbacks(speechio.Callbacks{
		OnPartialTranscript: func(text string) {
			c.local = append(c.local, events.NewCapturePartial(text))
		},
		OnTranscript: func(text string) {
			c.local = append(c.local, events.NewCaptureTranscript(text))
		},
		OnCaptureError: func(code string) {
			c.local = append(c.local, events.NewCaptureFailed(code))
		},
		OnPlaybackError: func(code string, blocked bool) {
			c.local = append(c.local, events.NewPlaybackErrored(code, blocked))
		},
	})

	return c
}

func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// Run processes events until ctx is done. It may be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.watchdog.close()
		c.speech.Close()
		close(c.done)
	}()

	captureEvents := c.speech.CaptureEvents()
	playbackEvents := c.speech.PlaybackEvents()
	results := c.speech.Results()

	c.notify()
	for {
		c.drainLocal(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-c.inbox:
			c.dispatch(ctx, event)
		case event := <-captureEvents:
			c.speech.HandleCaptureEvent(event)
		case event := <-playbackEvents:
			c.speech.HandlePlaybackEvent(event)
		case result := <-results:
			c.speech.HandleResult(result)
		case arm := <-c.watchdog.fired:
			c.dispatch(ctx, events.NewSilenceElapsed(arm))
		}
	}
}

func (c *Coordinator) drainLocal(ctx context.Context) {
	for len(c.local) > 0 {
		event := c.local[0]
		c.local = c.local[1:]
		c.dispatch(ctx, event)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, event events.Event) {
	c.mu.Lock()
	previous := c.state
	next, effects := transition(previous, event)
	c.state = next
	c.mu.Unlock()

	switch e := event.(type) {
	case events.AgentReplied:
		if e.Request != previous.lastRequest || !previous.inFlight {
			logger.Info("dropping stale agent reply", "request", e.Request, "latest", previous.lastRequest)
		}
	case events.AgentCallFailed:
		if e.Request == previous.lastRequest {
			logger.Error("agent call failed", "request", e.Request, "error", e.Err)
		}
	}
	if previous.turn != next.turn {
		logger.Debug("turn changed", "from", previous.turn.String(), "to", next.turn.String(), "event", string(event.Kind()))
	}

	for _, eff := range effects {
		c.execute(ctx, eff)
	}
	c.notify()
}

func (c *Coordinator) execute(ctx context.Context, eff effect) {
	switch e := eff.(type) {
	case startCapture:
		c.speech.StartCapture(ctx)
	case stopCapture:
		c.speech.StopCapture()
	case armWatchdog:
		c.watchdog.arm(e.arm)
	case cancelWatchdog:
		c.watchdog.cancel()
	case sendMessage:
		go c.callAgent(ctx, e.request, e.message)
	case speak:
		c.speak(ctx, e.request, e.utterance)
	}
}

func (c *Coordinator) callAgent(ctx context.Context, request uint64, message string) {
	ctx, span := tracer.Start(ctx, "agent turn")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("request", int64(request)),
		attribute.Bool("silence", message == SilenceMessage),
	)

	// capture is stopped at the device before the agent hears anything
	c.speech.Wait(ctx)
	span.AddEvent("devices settled")

	reply, err := c.agent.Chat(ctx, c.sessionID, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.post(events.NewAgentCallFailed(request, err))
		return
	}
	c.post(events.NewAgentReplied(request, reply.Text, reply.Agent, reply.Emotion))
}

func (c *Coordinator) speak(ctx context.Context, request uint64, utterance Utterance) {
	preset := PresetFor(utterance.AgentName)
	completed := events.NewPlaybackCompleted(request)

	accepted := c.speech.Speak(ctx, speechio.PlaybackRequest{
		Text:       utterance.Text,
		Voice:      preset.Voice,
		Rate:       preset.Rate,
		Pitch:      preset.Pitch,
		OnComplete: func() { c.local = append(c.local, completed) },
	})
	if !accepted {
		c.local = append(c.local, completed)
	}
}

func (c *Coordinator) post(event events.Event) {
	select {
	case c.inbox <- event:
	case <-c.done:
	}
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange(c.View())
	}
}

// SubmitText sends typed text to the agent on behalf of the human.
func (c *Coordinator) SubmitText(text string) {
	c.post(events.NewTextSubmitted(text))
}

// SetTypedText reports the current content of the typing buffer.
func (c *Coordinator) SetTypedText(text string) {
	c.post(events.NewTypedTextChanged(text))
}

// ToggleCapture starts or stops listening to the human.
func (c *Coordinator) ToggleCapture() {
	c.post(events.NewCaptureToggled())
}

// Replay speaks the agent utterance at index of the transcript again.
func (c *Coordinator) Replay(index int) {
	c.post(events.NewReplayRequested(index))
}

func (c *Coordinator) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return View{
		Turn:       c.state.turn,
		Listening:  c.speech.Capturing(),
		Transcript: slices.Clone(c.state.transcript),
		TypedText:  c.state.typed,
		Error:      c.state.errorMsg,
		Stalled:    c.state.turn == TurnAwaitingAgentReply && !c.state.inFlight,
	}
}
