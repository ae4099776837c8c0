package events

const (
	// KindTextSubmitted identifies an explicit submit of typed text.
	KindTextSubmitted Kind = "user_action.text_submitted"
	// KindTypedTextChanged identifies an edit of the in-progress typed buffer.
	KindTypedTextChanged Kind = "user_action.typed_text_changed"
	// KindCaptureToggled identifies the microphone toggle.
	KindCaptureToggled Kind = "user_action.capture_toggled"
	// KindReplayRequested identifies a manual replay of a logged utterance.
	KindReplayRequested Kind = "user_action.replay_requested"
)

// TextSubmitted carries text the user explicitly sent.
type TextSubmitted struct {
	Base
	Text string
}

// NewTextSubmitted creates a text submitted event.
func NewTextSubmitted(text string) TextSubmitted {
	return TextSubmitted{Base: NewBase(KindTextSubmitted), Text: text}
}

// TypedTextChanged carries the full current typed buffer.
type TypedTextChanged struct {
	Base
	Text string
}

// NewTypedTextChanged creates a typed text changed event.
func NewTypedTextChanged(text string) TypedTextChanged {
	return TypedTextChanged{Base: NewBase(KindTypedTextChanged), Text: text}
}

// CaptureToggled marks a press of the microphone toggle.
type CaptureToggled struct{ Base }

// NewCaptureToggled creates a capture toggled event.
func NewCaptureToggled() CaptureToggled {
	return CaptureToggled{Base: NewBase(KindCaptureToggled)}
}

// ReplayRequested carries the index of the utterance to replay.
type ReplayRequested struct {
	Base
	Index int
}

// NewReplayRequested creates a replay requested event.
func NewReplayRequested(index int) ReplayRequested {
	return ReplayRequested{Base: NewBase(KindReplayRequested), Index: index}
}
