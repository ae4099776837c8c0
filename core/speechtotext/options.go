package speechtotext

import "github.com/koscakluka/ema-interrogation/core/audio"

type TranscriptionOptions struct {
	// PartialTranscriptionCallback receives every finalized segment as soon as
	// it is available.
	PartialTranscriptionCallback func(transcript string)
	// TranscriptionCallback receives the accumulated transcript once the
	// speaker stops talking.
	TranscriptionCallback func(transcript string)

	SpeechStartedCallback func()

	// ErrorCallback is called when the transcription stream fails after it was
	// opened. The stream is closed by the time it is called.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
