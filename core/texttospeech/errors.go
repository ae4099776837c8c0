package texttospeech

import "errors"

var (
	// ErrUnauthorized is returned when the provider rejected the credentials.
	ErrUnauthorized = errors.New("text-to-speech: unauthorized")
	// ErrUnreachable is returned when the provider could not be reached or
	// dropped the connection mid synthesis.
	ErrUnreachable = errors.New("text-to-speech: service unreachable")
)
