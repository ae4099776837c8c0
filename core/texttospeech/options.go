package texttospeech

import "github.com/koscakluka/ema-interrogation/core/audio"

type TextToSpeechOptions struct {
	// Voice is the provider specific voice identifier. Empty selects the
	// provider default.
	Voice string
	// SpeechAudioCallback is called when the TTS client produces audio
	SpeechAudioCallback func(audio []byte)
	// SpeechEndedCallback is called once all audio for the text has been
	// produced
	SpeechEndedCallback func()
	// ErrorCallback is called when the TTS client fails after synthesis has
	// started. It is not called after Cancel.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithVoice(voice string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Voice = voice }
}

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechAudioCallback = callback }
}

func WithSpeechEndedCallback(callback func()) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// Speech is a single in-progress synthesis.
type Speech interface {
	// Cancel stops the synthesis. No callbacks fire after Cancel returns.
	// Repeated calls are ignored.
	Cancel() error
}

// Voice describes a voice offered by a provider. Name is human readable and
// includes the gender label, e.g. "Orion (Male, en-US)".
type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
}
