package orchestration

import (
	"slices"
	"strings"
	"time"

	"github.com/koscakluka/ema-interrogation/core/events"
)

// SilenceWindow is how long the human may stay silent while listening before
// the agent is told about it.
const SilenceWindow = 10 * time.Second

// SilenceMessage is sent to the agent in place of an answer when the silence
// window elapses.
const SilenceMessage = "[SILENCE]"

type state struct {
	turn       Turn
	transcript []Utterance
	typed      string
	errorMsg   string

	// lastRequest numbers agent calls; only the reply to the latest counts.
	lastRequest uint64
	inFlight    bool

	// playbackRequest numbers playback requests; only the completion of the
	// latest ends the agent turn.
	playbackRequest uint64

	// watchdogArm numbers watchdog arms; only a fire of the latest arm counts.
	watchdogArm uint64

	captureSupported bool
}

type effect interface{ isEffect() }

type startCapture struct{}

type stopCapture struct{}

type armWatchdog struct{ arm uint64 }

type cancelWatchdog struct{}

type sendMessage struct {
	request uint64
	message string
}

type speak struct {
	request   uint64
	utterance Utterance
}

func (startCapture) isEffect()   {}
func (stopCapture) isEffect()    {}
func (armWatchdog) isEffect()    {}
func (cancelWatchdog) isEffect() {}
func (sendMessage) isEffect()    {}
func (speak) isEffect()          {}

// transition computes the state that follows event and the effects needed to
// get there, in execution order. It does not mutate s.
func transition(s state, event events.Event) (state, []effect) {
	next, effects := s.apply(event)

	switch {
	case next.turn == TurnHumanListening && (s.turn != TurnHumanListening || rearmsWatchdog(event)):
		next.watchdogArm++
		effects = append(effects, armWatchdog{arm: next.watchdogArm})
	case s.turn == TurnHumanListening && next.turn != TurnHumanListening:
		next.watchdogArm++
		effects = append([]effect{cancelWatchdog{}}, effects...)
	}

	return next, effects
}

func rearmsWatchdog(event events.Event) bool {
	switch event.(type) {
	case events.TypedTextChanged, events.CapturePartial, events.CaptureTranscript:
		return true
	}
	return false
}

func (s state) apply(event events.Event) (state, []effect) {
	switch e := event.(type) {
	case events.TextSubmitted:
		if s.turn == TurnAgentSpeaking || s.inFlight || strings.TrimSpace(e.Text) == "" {
			return s, nil
		}
		return s.submit(e.Text)

	case events.TypedTextChanged:
		s.typed = e.Text
		if s.turn == TurnIdle && e.Text != "" {
			s.turn = TurnHumanTyping
		}
		return s, nil

	case events.CaptureToggled:
		if s.turn == TurnAgentSpeaking || s.inFlight || !s.captureSupported {
			return s, nil
		}
		if s.turn == TurnHumanListening {
			s.turn = TurnHumanTyping
			return s, []effect{stopCapture{}}
		}
		s.turn = TurnHumanListening
		s.errorMsg = ""
		return s, []effect{startCapture{}}

	case events.CapturePartial:
		if s.turn == TurnHumanListening && e.Text != "" {
			s.typed = e.Text
		}
		return s, nil

	case events.CaptureTranscript:
		if s.turn != TurnHumanListening {
			return s, nil
		}
		s.typed = e.Text
		s.errorMsg = ""
		if strings.TrimSpace(e.Text) == "" {
			return s, []effect{startCapture{}}
		}
		return s.submit(e.Text)

	case events.CaptureFailed:
		s.errorMsg = captureErrorMessage(e.Code)
		if s.turn == TurnHumanListening {
			s.turn = TurnHumanTyping
		}
		return s, nil

	case events.SilenceElapsed:
		if e.Arm != s.watchdogArm || s.turn != TurnHumanListening || strings.TrimSpace(s.typed) != "" {
			return s, nil
		}
		return s.callAgent(SilenceMessage)

	case events.AgentReplied:
		if e.Request != s.lastRequest || !s.inFlight {
			return s, nil
		}
		s.inFlight = false
		utterance := Utterance{Role: RoleAgent, Text: e.Text, AgentName: e.Agent, Emotion: e.Emotion}
		s.transcript = append(slices.Clip(s.transcript), utterance)
		return s.speak(utterance)

	case events.AgentCallFailed:
		if e.Request != s.lastRequest || !s.inFlight {
			return s, nil
		}
		s.inFlight = false
		s.errorMsg = agentUnavailableMessage
		return s, nil

	case events.PlaybackCompleted:
		if e.Request != s.playbackRequest || s.turn != TurnAgentSpeaking {
			return s, nil
		}
		if !s.captureSupported {
			s.turn = TurnHumanTyping
			return s, nil
		}
		s.turn = TurnHumanListening
		return s, []effect{startCapture{}}

	case events.PlaybackErrored:
		s.errorMsg = playbackErrorMessage(e.Code, e.Blocked)
		return s, nil

	case events.ReplayRequested:
		if s.inFlight || e.Index < 0 || e.Index >= len(s.transcript) {
			return s, nil
		}
		utterance := s.transcript[e.Index]
		if utterance.Role != RoleAgent {
			return s, nil
		}
		return s.speak(utterance)
	}

	return s, nil
}

func (s state) submit(text string) (state, []effect) {
	s.transcript = append(slices.Clip(s.transcript), Utterance{Role: RoleHuman, Text: text})
	s.typed = ""
	s.errorMsg = ""
	return s.callAgent(text)
}

func (s state) callAgent(message string) (state, []effect) {
	s.turn = TurnAwaitingAgentReply
	s.lastRequest++
	s.inFlight = true
	return s, []effect{stopCapture{}, sendMessage{request: s.lastRequest, message: message}}
}

func (s state) speak(utterance Utterance) (state, []effect) {
	s.turn = TurnAgentSpeaking
	s.playbackRequest++
	return s, []effect{stopCapture{}, speak{request: s.playbackRequest, utterance: utterance}}
}
