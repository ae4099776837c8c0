package speechio

import (
	"errors"
	"fmt"
)

// Device error codes.
const (
	CodeNetwork             = "network"
	CodeNotAllowed          = "not-allowed"
	CodeServiceNotAllowed   = "service-not-allowed"
	CodeAudioCapture        = "audio-capture"
	CodeNoSpeech            = "no-speech"
	CodeAborted             = "aborted"
	CodeCanceled            = "canceled"
	CodeInterrupted         = "interrupted"
	CodeSynthesisFailed     = "synthesis-failed"
	CodeAudioHardware       = "audio-hardware"
	CodeVoiceUnavailable    = "voice-unavailable"
	CodeTextTooLong         = "text-too-long"
	CodeLanguageUnavailable = "language-unavailable"
)

// DeviceError carries a device error code alongside the underlying error.
type DeviceError struct {
	Code string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "device error: " + e.Code
	}
	return fmt.Sprintf("device error %s: %v", e.Code, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the device code carried by err or fallback.
func ErrorCode(err error, fallback string) string {
	var deviceErr *DeviceError
	if errors.As(err, &deviceErr) && deviceErr.Code != "" {
		return deviceErr.Code
	}
	return fallback
}

type CaptureErrorClass int

const (
	CaptureErrorOther CaptureErrorClass = iota
	CaptureErrorNetwork
	CaptureErrorPermissionDenied
)

func ClassifyCaptureError(code string) CaptureErrorClass {
	switch code {
	case CodeNetwork:
		return CaptureErrorNetwork
	case CodeNotAllowed, CodeServiceNotAllowed:
		return CaptureErrorPermissionDenied
	}
	return CaptureErrorOther
}

// IsPlaybackBlocked reports whether a playback error needs the user to act
// before audio can play again.
func IsPlaybackBlocked(code string) bool {
	return code == CodeNotAllowed || code == CodeCanceled
}

func isPlaybackRetryable(code string) bool {
	switch code {
	case CodeNotAllowed, CodeInterrupted, CodeCanceled:
		return false
	}
	return true
}
