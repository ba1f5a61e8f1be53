// Package miniaudio captures microphone audio and plays synthesized speech
// through the default system devices.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-relay/core/audio"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	capture captureDevice

	captureRate  uint32
	playbackRate uint32
}

type ClientOption func(*Client)

// WithCaptureSampleRate sets the microphone rate. It must match what the
// transcription backend expects.
func WithCaptureSampleRate(rate int) ClientOption {
	return func(c *Client) {
		if rate > 0 {
			c.captureRate = uint32(rate)
		}
	}
}

// WithPlaybackSampleRate sets the speaker rate. It must match the audio the
// relay sends back.
func WithPlaybackSampleRate(rate int) ClientOption {
	return func(c *Client) {
		if rate > 0 {
			c.playbackRate = uint32(rate)
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := Client{
		captureRate:  audio.DefaultSampleRate,
		playbackRate: audio.DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(&client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playbackClient.Init(audioCtx, client.playbackRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.capture.open(audioCtx, client.captureRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// StartCapture delivers microphone audio to onAudio in 20ms frames. onAudio
// runs on the audio thread and owns each frame it receives.
func (c *Client) StartCapture(onAudio func(frame []byte)) error {
	return c.capture.start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.stop()
}

// OnPlayback registers callbacks for playback starting after silence and for
// the playback queue running dry. Both run outside the audio thread.
func (c *Client) OnPlayback(onStarted, onDrained func()) {
	c.queue.setCallbacks(onStarted, onDrained)
}

// Play queues 16-bit mono PCM at the playback rate.
func (c *Client) Play(pcm []byte) {
	c.queue.push(pcm)
}

// ClearBuffer drops everything not yet played.
func (c *Client) ClearBuffer() {
	c.queue.clear()
}

func (c *Client) Buffered() int {
	return c.queue.buffered()
}

func (c *Client) Close() {
	c.capture.close()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
	}
}

func (c *Client) CaptureEncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: int(c.captureRate), Format: audio.EncodingLinear16}
}

func (c *Client) PlaybackEncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: int(c.playbackRate), Format: audio.EncodingLinear16}
}
