// Package miniaudio provides microphone capture and speaker playback through
// miniaudio (malgo).
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interrogation/core/audio"
)

// Client shares one miniaudio context between a capture and a playback
// device running at the same encoding.
type Client struct {
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	playback playbackClient
	capture  captureClient
}

type ClientOption func(*Client)

// WithSampleRate overrides the default 16kHz device rate. Non-positive rates
// are ignored.
func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.encodingInfo.SampleRate = sampleRate
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{encodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(client)
	}

	var err error
	client.audioContext, err = malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	if err := client.playback.Init(client.audioContext, client.encodingInfo); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.capture.Init(client.audioContext, client.encodingInfo); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("audio devices ready", "sample_rate", client.encodingInfo.SampleRate)
	return client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.capture.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.Stop()
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playback.SendAudio(audio)
}

func (c *Client) ClearBuffer() {
	c.playback.ClearBuffer()
}

// Mark calls callback once all audio sent before the mark has been played.
func (c *Client) Mark(mark string, callback func(string)) error {
	return c.playback.Mark(mark, callback)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

func (c *Client) Close() {
	c.capture.Uninit()
	c.playback.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
