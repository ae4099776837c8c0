package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interrogation/core/audio"
)

type playbackClient struct {
	device *malgo.Device

	// pending audio and marks share bufferMu so mark positions stay in step
	// with the audio that is consumed
	pendingAudio []byte
	marks        []playbackMark
	bufferMu     sync.Mutex

	mu sync.Mutex
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

// Init opens the playback device and starts it. The device plays silence
// while nothing is pending.
func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, info audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, bytesPerFrame, err := deviceConfig(malgo.Playback, info)
	if err != nil {
		return err
	}

	c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.processAudio(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("playback device not started")
	}

	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()
	c.pendingAudio = append(c.pendingAudio, audio...)
	return nil
}

// ClearBuffer drops pending audio. Pending marks are dropped without being
// called.
func (c *playbackClient) ClearBuffer() {
	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()
	c.pendingAudio = nil
	c.marks = nil
}

func (c *playbackClient) Mark(mark string, callback func(string)) error {
	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()
	c.marks = append(c.marks, playbackMark{
		name:     mark,
		position: len(c.pendingAudio),
		callback: callback,
	})
	return nil
}

func (c *playbackClient) Uninit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.bufferMu.Lock()
		n := copy(pOutput[:need], c.pendingAudio)
		c.pendingAudio = c.pendingAudio[n:]
		passed := c.consumeMarks(need)
		c.bufferMu.Unlock()

		if n < need {
			clear(pOutput[n:need])
		}

		if len(passed) > 0 {
			go func() {
				for _, mark := range passed {
					mark.callback(mark.name)
				}
			}()
		}
	}
}

// consumeMarks must be called with bufferMu held.
func (c *playbackClient) consumeMarks(consumed int) []playbackMark {
	passedMarks := 0
	for i := range c.marks {
		if c.marks[i].position > consumed {
			c.marks[i].position -= consumed
		} else {
			passedMarks++
		}
	}
	if passedMarks == 0 {
		return nil
	}

	passed := c.marks[:passedMarks]
	c.marks = c.marks[passedMarks:]
	return passed
}
