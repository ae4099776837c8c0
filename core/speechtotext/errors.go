package speechtotext

import "errors"

var (
	// ErrUnauthorized is returned when the transcription service rejected the
	// credentials.
	ErrUnauthorized = errors.New("speech-to-text: unauthorized")
	// ErrUnreachable is returned when the transcription service could not be
	// reached or dropped the connection.
	ErrUnreachable = errors.New("speech-to-text: service unreachable")
)
