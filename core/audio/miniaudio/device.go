package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interrogation/core/audio"
)

const channels = 1

// deviceConfig returns a mono device config for info together with the size
// of one frame in bytes.
func deviceConfig(deviceType malgo.DeviceType, info audio.EncodingInfo) (malgo.DeviceConfig, int, error) {
	if info.Format != audio.EncodingLinear16 {
		return malgo.DeviceConfig{}, 0, fmt.Errorf("unsupported encoding %q", info.Format.Name())
	}
	if info.SampleRate <= 0 {
		return malgo.DeviceConfig{}, 0, fmt.Errorf("invalid sample rate %d", info.SampleRate)
	}

	format := malgo.FormatS16
	sampleRate := uint32(info.SampleRate)

	config := malgo.DefaultDeviceConfig(deviceType)
	config.SampleRate = sampleRate
	config.Alsa.NoMMap = 1

	switch deviceType {
	case malgo.Capture:
		config.Capture.Format = format
		config.Capture.Channels = channels
		config.PerformanceProfile = malgo.LowLatency
		config.PeriodSizeInFrames = sampleRate * 30 / 1000
		config.Periods = 3
	case malgo.Playback:
		config.Playback.Format = format
		config.Playback.Channels = channels
		config.PeriodSizeInFrames = sampleRate / 10
		config.Periods = 4
	}

	return config, malgo.SampleSizeInBytes(format) * channels, nil
}
