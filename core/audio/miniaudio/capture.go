package miniaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interrogation/core/audio"
)

var errDeviceNotInitialized = errors.New("device not initialized")

type captureClient struct {
	device *malgo.Device

	// onAudio is read from the device thread.
	onAudio   func(audio []byte)
	onAudioMu sync.RWMutex

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, info audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, bytesPerFrame, err := deviceConfig(malgo.Capture, info)
	if err != nil {
		return err
	}

	c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.forwardAudio(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	return nil
}

// forwardAudio hands a copy of every captured period to the current
// listener. The device reuses its input buffer.
func (c *captureClient) forwardAudio(bytesPerFrame int) malgo.DataProc {
	return func(_, pInput []byte, frameCount uint32) {
		n := int(frameCount) * bytesPerFrame
		if n == 0 || len(pInput) < n {
			return
		}

		c.onAudioMu.RLock()
		onAudio := c.onAudio
		c.onAudioMu.RUnlock()
		if onAudio == nil {
			return
		}

		chunk := make([]byte, n)
		copy(chunk, pInput[:n])
		onAudio(chunk)
	}
}

// Start routes captured audio to onAudio, starting the device if needed.
func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}

	c.setOnAudio(onAudio)
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		c.setOnAudio(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}

	c.setOnAudio(nil)
	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Uninit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setOnAudio(nil)
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
}

func (c *captureClient) setOnAudio(onAudio func([]byte)) {
	c.onAudioMu.Lock()
	defer c.onAudioMu.Unlock()
	c.onAudio = onAudio
}
