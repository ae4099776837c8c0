//go:build portaudio
// +build portaudio

// Package portaudio provides microphone capture and speaker playback through
// PortAudio. Build with -tags portaudio.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-interrogation/core/audio"
)

type Client struct {
	bufferSize int

	inStream  *portaudio.Stream
	outStream *portaudio.Stream
	in        []int16
	out       []int16

	captureCancel context.CancelFunc
	captureDone   chan struct{}
	captureMu     sync.Mutex

	queue      chan playbackItem
	generation uint64
	pending    []byte
	playbackMu sync.Mutex
	closed     chan struct{}
}

type playbackItem struct {
	generation uint64
	audio      []byte
	mark       string
	callback   func(string)
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		in:         make([]int16, bufferSize),
		out:        make([]int16, bufferSize),
		queue:      make(chan playbackItem, 256),
		closed:     make(chan struct{}),
	}

	var err error
	if c.inStream, err = portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, c.in); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening input stream: %w", err)
	}
	if c.outStream, err = portaudio.OpenDefaultStream(0, 1, audio.DefaultSampleRate, bufferSize, c.out); err != nil {
		c.inStream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("opening output stream: %w", err)
	}
	if err := c.outStream.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting output stream: %w", err)
	}

	go c.play()

	return c, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel != nil {
		return nil
	}

	if err := c.inStream.Start(); err != nil {
		return fmt.Errorf("starting input stream: %w", err)
	}

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.captureCancel = cancel
	c.captureDone = make(chan struct{})
	go c.capture(captureCtx, c.captureDone, onAudio)

	return nil
}

func (c *Client) capture(ctx context.Context, done chan struct{}, onAudio func([]byte)) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.inStream.Read(); err != nil {
			logger.Warn("failed to read from portaudio stream", "error", err)
			continue
		}

		audioBuffer := bytes.Buffer{}
		_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
		onAudio(audioBuffer.Bytes())
	}
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel == nil {
		return nil
	}

	c.captureCancel()
	<-c.captureDone
	c.captureCancel = nil
	if err := c.inStream.Stop(); err != nil {
		return fmt.Errorf("stopping input stream: %w", err)
	}
	return nil
}

func (c *Client) SendAudio(audio []byte) error {
	c.playbackMu.Lock()
	generation := c.generation
	c.playbackMu.Unlock()

	select {
	case c.queue <- playbackItem{generation: generation, audio: audio}:
		return nil
	case <-c.closed:
		return fmt.Errorf("client closed")
	}
}

// ClearBuffer drops queued audio and marks.
func (c *Client) ClearBuffer() {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()
	c.generation++
	c.pending = nil
}

// Mark calls callback once all audio sent before the mark has been written to
// the output stream.
func (c *Client) Mark(mark string, callback func(string)) error {
	c.playbackMu.Lock()
	generation := c.generation
	c.playbackMu.Unlock()

	select {
	case c.queue <- playbackItem{generation: generation, mark: mark, callback: callback}:
		return nil
	case <-c.closed:
		return fmt.Errorf("client closed")
	}
}

func (c *Client) play() {
	frameBytes := c.bufferSize * 2
	for {
		var item playbackItem
		select {
		case <-c.closed:
			return
		case item = <-c.queue:
		}

		c.playbackMu.Lock()
		stale := item.generation != c.generation
		c.playbackMu.Unlock()
		if stale {
			continue
		}

		if item.callback != nil {
			item.callback(item.mark)
			continue
		}

		c.playbackMu.Lock()
		c.pending = append(c.pending, item.audio...)
		for len(c.pending) >= frameBytes {
			_ = binary.Read(bytes.NewReader(c.pending[:frameBytes]), binary.LittleEndian, c.out)
			c.pending = c.pending[frameBytes:]
			c.playbackMu.Unlock()
			if err := c.outStream.Write(); err != nil {
				logger.Debug("failed to write to portaudio stream", "error", err)
			}
			c.playbackMu.Lock()
		}
		c.playbackMu.Unlock()
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *Client) Close() {
	_ = c.StopCapture()
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	if c.outStream != nil {
		_ = c.outStream.Stop()
		_ = c.outStream.Close()
	}
	if c.inStream != nil {
		_ = c.inStream.Close()
	}
	portaudio.Terminate()
}
