// Package speechio owns the capture and playback devices of a conversation
// and makes sure they are never active together.
package speechio

import (
	"context"
	"strings"
	"sync"

	"github.com/koscakluka/ema-interrogation/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const resultBuffer = 8

// Callbacks receive device results. They are called synchronously from the
// controller method that observed the result, after the controller state has
// been updated and its lock released.
type Callbacks struct {
	// OnPartialTranscript receives the text heard so far while capture
	// continues.
	OnPartialTranscript func(text string)
	OnTranscript        func(text string)
	OnCaptureError      func(code string)
	OnPlaybackError     func(code string, blocked bool)
}

// Result is the failure of a device call that ran on the controller's call
// queue. It is applied with HandleResult.
type Result struct {
	captureSession uint64
	utterance      uint64
	code           string
}

// Controller drives the devices without blocking its caller: device calls
// run in order on a call queue, and their failures come back through
// Results.
type Controller struct {
	capture  CaptureDevice
	playback PlaybackDevice

	callbacks Callbacks

	captureActive  bool
	captureSession uint64
	active         *activePlayback
	pending        *pendingPlayback
	lastUtterance  uint64

	calls     *callQueue
	results   chan Result
	closing   chan struct{}
	closeOnce sync.Once

	retries metric.Int64Counter

	mu sync.Mutex
}

type activePlayback struct {
	ctx       context.Context
	utterance Utterance
	request   PlaybackRequest
	retried   bool
}

type pendingPlayback struct {
	ctx     context.Context
	request PlaybackRequest
}

// NewController creates a controller for the given devices. Either device may
// be nil, in which case the related operations degrade to no-ops.
func NewController(capture CaptureDevice, playback PlaybackDevice) *Controller {
	c := &Controller{
		capture:  capture,
		playback: playback,
		calls:    newCallQueue(),
		results:  make(chan Result, resultBuffer),
		closing:  make(chan struct{}),
	}
	c.SetCallbacks(Callbacks{})

	retries, err := meter.Int64Counter("speechio.playback.retries",
		metric.WithDescription("Number of playbacks retried with the default voice"))
	if err != nil {
		logger.Warn("failed to create playback retry counter", "error", err)
	}
	c.retries = retries

	return c
}

func (c *Controller) SetCallbacks(callbacks Callbacks) {
	if callbacks.OnPartialTranscript == nil {
		callbacks.OnPartialTranscript = func(string) {}
	}
	if callbacks.OnTranscript == nil {
		callbacks.OnTranscript = func(string) {}
	}
	if callbacks.OnCaptureError == nil {
		callbacks.OnCaptureError = func(string) {}
	}
	if callbacks.OnPlaybackError == nil {
		callbacks.OnPlaybackError = func(string, bool) {}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = callbacks
}

func (c *Controller) CaptureSupported() bool  { return c.capture != nil }
func (c *Controller) PlaybackSupported() bool { return c.playback != nil }

// CaptureEvents returns the capture device events, nil without a device.
func (c *Controller) CaptureEvents() <-chan events.Event {
	if c.capture == nil {
		return nil
	}
	return c.capture.Events()
}

// PlaybackEvents returns the playback device events, nil without a device.
func (c *Controller) PlaybackEvents() <-chan events.Event {
	if c.playback == nil {
		return nil
	}
	return c.playback.Events()
}

// Results returns failures of queued device calls.
func (c *Controller) Results() <-chan Result {
	return c.results
}

// Wait blocks until the device calls queued so far have run, ctx is done or
// the controller is closed.
func (c *Controller) Wait(ctx context.Context) {
	reached := make(chan struct{})
	c.calls.do(func() { close(reached) })
	select {
	case <-reached:
	case <-ctx.Done():
	case <-c.closing:
	}
}

func (c *Controller) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureActive
}

// Playing reports whether a playback request is active or waiting for voices.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil || c.pending != nil
}

// StartCapture starts a capture session. It is a no-op while capturing,
// while playback is active or pending, and without a capture device. Capture
// counts as active from the call on; a failing device start is reported
// through Results.
func (c *Controller) StartCapture(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil || c.captureActive || c.active != nil || c.pending != nil {
		return
	}

	c.captureActive = true
	c.captureSession++
	session := c.captureSession
	c.calls.do(func() {
		if err := c.capture.Start(ctx); err != nil {
			code := ErrorCode(err, CodeAudioCapture)
			logger.Warn("failed to start capture", "code", code, "error", err)
			c.report(Result{captureSession: session, code: code})
		}
	})
}

// StopCapture ends the capture session, if any.
func (c *Controller) StopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCaptureLocked()
}

func (c *Controller) stopCaptureLocked() {
	if c.capture == nil || !c.captureActive {
		return
	}

	c.captureActive = false
	c.calls.do(func() {
		if err := c.capture.Stop(); err != nil {
			logger.Warn("failed to stop capture", "error", err)
		}
	})
}

func (c *Controller) cancelPlaybackLocked() {
	c.calls.do(func() {
		if err := c.playback.Cancel(); err != nil {
			logger.Warn("failed to cancel playback", "error", err)
		}
	})
}

// Speak replaces any current playback with request. It returns false when
// there is no playback device, in which case OnComplete never fires.
func (c *Controller) Speak(ctx context.Context, request PlaybackRequest) bool {
	if c.playback == nil {
		return false
	}
	voices := c.playback.Voices()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCaptureLocked()
	c.cancelPlaybackLocked()
	c.active = nil
	c.pending = nil

	if len(voices) == 0 {
		c.pending = &pendingPlayback{ctx: ctx, request: request}
		logger.Debug("voices not loaded yet, playback parked")
		return true
	}

	c.startLocked(ctx, request, resolveVoice(voices, request.Voice), false)
	return true
}

func resolveVoice(voices []Voice, name string) *Voice {
	if name == "" {
		return nil
	}
	for _, voice := range voices {
		if strings.Contains(voice.Name, name) {
			return &voice
		}
	}
	return nil
}

func (c *Controller) startLocked(ctx context.Context, request PlaybackRequest, voice *Voice, retried bool) {
	c.lastUtterance++
	utterance := Utterance{
		ID:    c.lastUtterance,
		Text:  request.Text,
		Voice: voice,
		Rate:  request.Rate,
		Pitch: request.Pitch,
	}
	c.active = &activePlayback{ctx: ctx, utterance: utterance, request: request, retried: retried}

	c.calls.do(func() {
		spanCtx, span := tracer.Start(ctx, "start playback")
		defer span.End()
		span.SetAttributes(
			attribute.Int64("utterance.id", int64(utterance.ID)),
			attribute.Bool("utterance.retry", retried),
		)
		if voice != nil {
			span.SetAttributes(attribute.String("utterance.voice", voice.Name))
		}

		if err := c.playback.Speak(spanCtx, utterance); err != nil {
			span.RecordError(err)
			c.report(Result{utterance: utterance.ID, code: ErrorCode(err, CodeSynthesisFailed)})
		}
	})
}

func (c *Controller) report(result Result) {
	select {
	case c.results <- result:
	case <-c.closing:
	}
}

// failLocked ends the active playback with code. The returned callbacks must
// be run after the lock is released.
func (c *Controller) failLocked(code string) []func() {
	failed := c.active
	c.active = nil

	blocked := IsPlaybackBlocked(code)
	onPlaybackError := c.callbacks.OnPlaybackError
	deferred := []func(){func() { onPlaybackError(code, blocked) }}
	if failed == nil {
		return deferred
	}

	if isPlaybackRetryable(code) && failed.utterance.Voice != nil && !failed.retried {
		logger.Info("retrying playback with default voice", "code", code, "voice", failed.utterance.Voice.Name)
		if c.retries != nil {
			c.retries.Add(failed.ctx, 1)
		}
		c.startLocked(failed.ctx, failed.request, nil, true)
		return deferred
	}

	if failed.request.OnComplete != nil {
		deferred = append(deferred, failed.request.OnComplete)
	}
	return deferred
}

// HandleResult applies the failure of a queued device call. Failures of
// superseded sessions and utterances are ignored.
func (c *Controller) HandleResult(result Result) {
	c.mu.Lock()
	var deferred []func()
	switch {
	case result.captureSession != 0:
		if c.captureActive && c.captureSession == result.captureSession {
			c.captureActive = false
			onCaptureError := c.callbacks.OnCaptureError
			deferred = append(deferred, func() { onCaptureError(result.code) })
		}
	case result.utterance != 0:
		if c.isActiveLocked(result.utterance) {
			deferred = c.failLocked(result.code)
		}
	}
	c.mu.Unlock()

	runAll(deferred)
}

// HandleCaptureEvent applies an event from the capture device. Events that
// arrive while no capture session is active are ignored.
func (c *Controller) HandleCaptureEvent(event events.Event) {
	c.mu.Lock()
	if !c.captureActive {
		c.mu.Unlock()
		logger.Debug("ignoring capture event without active session", "kind", event.Kind())
		return
	}

	var deferred func()
	switch e := event.(type) {
	case events.CapturePartial:
		onPartial := c.callbacks.OnPartialTranscript
		deferred = func() { onPartial(e.Text) }
	case events.CaptureTranscript:
		c.stopCaptureLocked()
		onTranscript := c.callbacks.OnTranscript
		deferred = func() { onTranscript(e.Text) }
	case events.CaptureFailed:
		c.stopCaptureLocked()
		onCaptureError := c.callbacks.OnCaptureError
		deferred = func() { onCaptureError(e.Code) }
	case events.CaptureEnded:
		c.stopCaptureLocked()
	default:
		logger.Debug("ignoring unknown capture event", "kind", event.Kind())
	}
	c.mu.Unlock()

	if deferred != nil {
		deferred()
	}
}

// HandlePlaybackEvent applies an event from the playback device. Events for
// utterances other than the active one are ignored.
func (c *Controller) HandlePlaybackEvent(event events.Event) {
	var voices []Voice
	if _, ok := event.(events.VoicesChanged); ok && c.playback != nil {
		voices = c.playback.Voices()
	}

	c.mu.Lock()
	var deferred []func()
	switch e := event.(type) {
	case events.VoicesChanged:
		if c.pending != nil {
			pending := c.pending
			c.pending = nil
			c.startLocked(pending.ctx, pending.request, resolveVoice(voices, pending.request.Voice), false)
		}
	case events.PlaybackStarted:
		if c.isActiveLocked(e.Utterance) {
			logger.Debug("playback started", "utterance", e.Utterance)
		}
	case events.PlaybackEnded:
		if c.isActiveLocked(e.Utterance) {
			finished := c.active
			c.active = nil
			if finished.request.OnComplete != nil {
				deferred = append(deferred, finished.request.OnComplete)
			}
		}
	case events.PlaybackFailed:
		if c.isActiveLocked(e.Utterance) {
			deferred = c.failLocked(e.Code)
		} else {
			logger.Debug("ignoring stale playback failure", "utterance", e.Utterance, "code", e.Code)
		}
	default:
		logger.Debug("ignoring unknown playback event", "kind", event.Kind())
	}
	c.mu.Unlock()

	runAll(deferred)
}

func (c *Controller) isActiveLocked(utterance uint64) bool {
	return c.active != nil && c.active.utterance.ID == utterance
}

// Close stops capture and playback without firing any callbacks and waits
// for the queued device calls to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopCaptureLocked()
	if c.playback != nil && (c.active != nil || c.pending != nil) {
		c.cancelPlaybackLocked()
	}
	c.active = nil
	c.pending = nil
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.closing)
		c.calls.close()
	})
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
