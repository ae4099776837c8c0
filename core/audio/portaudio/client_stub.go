//go:build !portaudio
// +build !portaudio

package portaudio

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-interrogation/core/audio"
)

// Client stub when portaudio is not available
type Client struct{}

func NewClient(bufferSize int) (*Client, error) {
	return nil, fmt.Errorf("portaudio not available: rebuild with -tags portaudio")
}

func (c *Client) StartCapture(context.Context, func([]byte)) error {
	return fmt.Errorf("portaudio not available")
}

func (c *Client) StopCapture() error { return nil }

func (c *Client) SendAudio([]byte) error { return fmt.Errorf("portaudio not available") }

func (c *Client) ClearBuffer() {}

func (c *Client) Mark(string, func(string)) error { return fmt.Errorf("portaudio not available") }

func (c *Client) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (c *Client) Close() {}
