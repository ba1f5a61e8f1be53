package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// captureFrameDuration is the length of every frame handed to a frameSink.
// The relay client forwards each frame as one audio envelope.
const captureFrameDuration = 20 * time.Millisecond

var errDeviceNotInitialized = errors.New("device not initialized")

// frameSink receives one complete frame of 16-bit mono PCM. The frame is
// never reused by the device.
type frameSink func(frame []byte)

// frameAssembler cuts the irregular device callbacks into frames of a fixed
// size. It is only touched from the audio thread, or while the device is
// stopped.
type frameAssembler struct {
	frameSize int
	pending   []byte
}

func newFrameAssembler(sampleRate uint32, bytesPerSample int) *frameAssembler {
	frameSize := int(sampleRate) * bytesPerSample * int(captureFrameDuration/time.Millisecond) / 1000
	return &frameAssembler{
		frameSize: max(frameSize, bytesPerSample),
		pending:   make([]byte, 0, 2*frameSize),
	}
}

func (a *frameAssembler) write(input []byte, emit frameSink) {
	a.pending = append(a.pending, input...)

	offset := 0
	for len(a.pending)-offset >= a.frameSize {
		frame := make([]byte, a.frameSize)
		copy(frame, a.pending[offset:])
		offset += a.frameSize
		emit(frame)
	}
	a.pending = append(a.pending[:0], a.pending[offset:]...)
}

func (a *frameAssembler) reset() {
	a.pending = a.pending[:0]
}

// captureDevice reads the default microphone and delivers fixed-size frames
// to the sink registered by start.
type captureDevice struct {
	device    *malgo.Device
	assembler *frameAssembler
	sink      atomic.Pointer[frameSink]

	mu sync.Mutex
}

func (c *captureDevice) open(audioContext *malgo.AllocatedContext, sampleRate uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerSample := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = sampleRate
	config.Capture.Format = format
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(int(sampleRate) * int(captureFrameDuration/time.Millisecond) / 1000)
	config.Periods = 3

	c.assembler = newFrameAssembler(sampleRate, bytesPerSample)

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := min(int(frameCount)*bytesPerSample, len(input))
			if n == 0 {
				return
			}
			if sink := c.sink.Load(); sink != nil {
				c.assembler.write(input[:n], *sink)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	c.device = device

	return nil
}

func (c *captureDevice) start(sink frameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	} else if c.device.IsStarted() {
		return nil
	}

	c.assembler.reset()
	c.sink.Store(&sink)
	if err := c.device.Start(); err != nil {
		c.sink.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

// stop halts the microphone. A partial frame still being assembled is
// dropped.
func (c *captureDevice) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	c.sink.Store(nil)

	return nil
}

func (c *captureDevice) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.sink.Store(nil)
}
