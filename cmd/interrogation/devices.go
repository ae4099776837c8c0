package main

import (
	"context"
	"log/slog"

	"github.com/koscakluka/ema-interrogation/core/audio/miniaudio"
	"github.com/koscakluka/ema-interrogation/core/audio/portaudio"
	"github.com/koscakluka/ema-interrogation/core/speechio"
	deepgramstt "github.com/koscakluka/ema-interrogation/core/speechtotext/deepgram"
	deepgramtts "github.com/koscakluka/ema-interrogation/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-interrogation/internal/config"
)

type audioClient interface {
	speechio.AudioInput
	speechio.AudioOutput
	Close()
}

// newSpeechController wires the configured audio backend and Deepgram into a
// speech controller. Any missing piece leaves the conversation text only.
func newSpeechController(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*speechio.Controller, func()) {
	textOnly := func(reason string, args ...any) (*speechio.Controller, func()) {
		logger.Warn("speech disabled, "+reason, args...)
		return speechio.NewController(nil, nil), func() {}
	}

	if cfg.Audio.Backend == config.AudioBackendNone {
		return textOnly("audio backend is none")
	}
	if cfg.Deepgram.APIKey == "" {
		return textOnly("no Deepgram API key configured")
	}

	device, err := newAudioClient(cfg.Audio)
	if err != nil {
		return textOnly("audio device unavailable", "backend", cfg.Audio.Backend, "error", err)
	}

	var sttOpts []deepgramstt.ClientOption
	if cfg.Deepgram.ListenURL != "" {
		sttOpts = append(sttOpts, deepgramstt.WithBaseURL(cfg.Deepgram.ListenURL))
	}
	transcriber, err := deepgramstt.NewTranscriptionClient(cfg.Deepgram.APIKey, sttOpts...)
	if err != nil {
		device.Close()
		return textOnly("speech-to-text unavailable", "error", err)
	}

	var ttsOpts []deepgramtts.ClientOption
	if cfg.Deepgram.SpeakURL != "" {
		ttsOpts = append(ttsOpts, deepgramtts.WithSpeakURL(cfg.Deepgram.SpeakURL))
	}
	if cfg.Deepgram.APIURL != "" {
		ttsOpts = append(ttsOpts, deepgramtts.WithAPIURL(cfg.Deepgram.APIURL))
	}
	synthesizer, err := deepgramtts.NewTextToSpeechClient(cfg.Deepgram.APIKey, ttsOpts...)
	if err != nil {
		transcriber.Close()
		device.Close()
		return textOnly("text-to-speech unavailable", "error", err)
	}

	controller := speechio.NewController(
		speechio.NewRecognizer(device, transcriber),
		speechio.NewSynthesizer(ctx, synthesizer, device),
	)
	return controller, func() {
		transcriber.Close()
		device.Close()
	}
}

func newAudioClient(cfg config.AudioConfig) (audioClient, error) {
	switch cfg.Backend {
	case config.AudioBackendPortaudio:
		return portaudio.NewClient(cfg.BufferSize)
	default:
		return miniaudio.NewClient(miniaudio.WithSampleRate(cfg.SampleRate))
	}
}
