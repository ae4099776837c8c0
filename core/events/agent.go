package events

const (
	// KindAgentReplied identifies a successful remote agent reply.
	KindAgentReplied Kind = "agent.replied"
	// KindAgentCallFailed identifies a failed remote agent call.
	KindAgentCallFailed Kind = "agent.call_failed"
	// KindPlaybackCompleted identifies completion of a coordinator playback request.
	KindPlaybackCompleted Kind = "agent.playback_completed"
	// KindPlaybackErrored identifies a playback error surfaced by the controller.
	KindPlaybackErrored Kind = "agent.playback_errored"
)

// AgentReplied carries the reply for the request with sequence number Request.
type AgentReplied struct {
	Base
	Request uint64
	Text    string
	Agent   string
	Emotion string
}

// NewAgentReplied creates an agent replied event.
func NewAgentReplied(request uint64, text, agent, emotion string) AgentReplied {
	return AgentReplied{Base: NewBase(KindAgentReplied), Request: request, Text: text, Agent: agent, Emotion: emotion}
}

// AgentCallFailed carries the error of the request with sequence number Request.
type AgentCallFailed struct {
	Base
	Request uint64
	Err     error
}

// NewAgentCallFailed creates an agent call failed event.
func NewAgentCallFailed(request uint64, err error) AgentCallFailed {
	return AgentCallFailed{Base: NewBase(KindAgentCallFailed), Request: request, Err: err}
}

// PlaybackCompleted marks the completion callback of playback request Request.
type PlaybackCompleted struct {
	Base
	Request uint64
}

// NewPlaybackCompleted creates a playback completed event.
func NewPlaybackCompleted(request uint64) PlaybackCompleted {
	return PlaybackCompleted{Base: NewBase(KindPlaybackCompleted), Request: request}
}

// PlaybackErrored carries a playback error code and whether it blocks playback
// until the user acts.
type PlaybackErrored struct {
	Base
	Code    string
	Blocked bool
}

// NewPlaybackErrored creates a playback errored event.
func NewPlaybackErrored(code string, blocked bool) PlaybackErrored {
	return PlaybackErrored{Base: NewBase(KindPlaybackErrored), Code: code, Blocked: blocked}
}
