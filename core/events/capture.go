package events

const (
	// KindCaptureTranscript identifies the final transcript of a capture session.
	KindCaptureTranscript Kind = "capture.transcript"
	// KindCapturePartial identifies the text heard so far in a capture session.
	KindCapturePartial Kind = "capture.partial"
	// KindCaptureFailed identifies a device level capture failure.
	KindCaptureFailed Kind = "capture.failed"
	// KindCaptureEnded identifies a capture session that ended without a result.
	KindCaptureEnded Kind = "capture.ended"
)

// CaptureTranscript carries the final (never interim) transcript.
type CaptureTranscript struct {
	Base
	Text string
}

// NewCaptureTranscript creates a capture transcript event.
func NewCaptureTranscript(text string) CaptureTranscript {
	return CaptureTranscript{Base: NewBase(KindCaptureTranscript), Text: text}
}

// CapturePartial carries everything finalized so far in the current session.
// The session stays open.
type CapturePartial struct {
	Base
	Text string
}

func NewCapturePartial(text string) CapturePartial {
	return CapturePartial{Base: NewBase(KindCapturePartial), Text: text}
}

// CaptureFailed carries the device error code, e.g. "network" or "not-allowed".
type CaptureFailed struct {
	Base
	Code string
}

// NewCaptureFailed creates a capture failure event.
func NewCaptureFailed(code string) CaptureFailed {
	return CaptureFailed{Base: NewBase(KindCaptureFailed), Code: code}
}

// CaptureEnded marks a session that stopped on its own without a transcript.
type CaptureEnded struct{ Base }

// NewCaptureEnded creates a capture ended event.
func NewCaptureEnded() CaptureEnded {
	return CaptureEnded{Base: NewBase(KindCaptureEnded)}
}
