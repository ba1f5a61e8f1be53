package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/events"
)

const (
	speakerUser = "user"
	speakerAI   = "ai"
	speakerNone = "none"

	writeTimeout = 5 * time.Second
)

// player is the playback half of the audio device.
type player interface {
	Play(pcm []byte)
	ClearBuffer()
}

// RelayEvent is something worth showing in the terminal.
type RelayEvent struct {
	Type   string
	Detail string
}

// relayClient owns the websocket. Capture callbacks, playback callbacks and
// the read loop all write through send.
type relayClient struct {
	player       player
	playbackRate int
	logger       *slog.Logger

	send func(events.Envelope) error
	read func() (int, []byte, error)

	eventsMu sync.Mutex
	events   chan RelayEvent
	closed   bool

	speakerMu sync.Mutex
	speaker   string
}

func newRelayClient(conn *websocket.Conn, player player, playbackRate int, logger *slog.Logger) *relayClient {
	var writeMu sync.Mutex
	client := newRelayClientWith(player, playbackRate, logger, func(envelope events.Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(envelope)
	})
	client.read = conn.ReadMessage
	return client
}

func newRelayClientWith(player player, playbackRate int, logger *slog.Logger, send func(events.Envelope) error) *relayClient {
	return &relayClient{
		player:       player,
		playbackRate: playbackRate,
		logger:       logger,
		send:         send,
		events:       make(chan RelayEvent, 64),
		speaker:      speakerNone,
	}
}

// Events streams what the client saw, for the UI. It is closed when the
// read loop ends.
func (c *relayClient) Events() <-chan RelayEvent {
	return c.events
}

func (c *relayClient) sendAudio(pcm []byte) {
	envelope, err := events.NewEnvelope(events.KindInputAudioAppend, base64.StdEncoding.EncodeToString(pcm))
	if err != nil {
		c.logger.Error("failed to encode audio", "error", err)
		return
	}
	if err := c.send(envelope); err != nil {
		c.logger.Debug("failed to send audio", "error", err)
	}
}

// reportSpeaker tells the relay who is speaking. Repeated values are not
// resent.
func (c *relayClient) reportSpeaker(speaker string) {
	c.speakerMu.Lock()
	if c.speaker == speaker {
		c.speakerMu.Unlock()
		return
	}
	c.speaker = speaker
	c.speakerMu.Unlock()

	envelope, err := events.NewEnvelope(events.KindSpeakerSwitch, speaker)
	if err != nil {
		c.logger.Error("failed to encode speaker switch", "error", err)
		return
	}
	if err := c.send(envelope); err != nil {
		c.logger.Debug("failed to send speaker switch", "error", err)
		return
	}
	c.publish(RelayEvent{Type: "speaker", Detail: speaker})
}

func (c *relayClient) currentSpeaker() string {
	c.speakerMu.Lock()
	defer c.speakerMu.Unlock()
	return c.speaker
}

func (c *relayClient) readLoop(ctx context.Context) {
	defer c.closeEvents()

	for ctx.Err() == nil {
		_, frame, err := c.read()
		if err != nil {
			if ctx.Err() == nil {
				c.publish(RelayEvent{Type: "disconnected", Detail: err.Error()})
			}
			return
		}
		if err := c.handleFrame(frame); err != nil {
			c.logger.Warn("failed to handle frame", "error", err)
			c.publish(RelayEvent{Type: "error", Detail: err.Error()})
		}
	}
}

func (c *relayClient) handleFrame(frame []byte) error {
	envelope, err := events.ParseEnvelope(frame)
	if err != nil {
		return err
	}

	switch events.Kind(envelope.Event) {
	case events.KindOutputAudioAppend:
		return c.playAudio(envelope)

	case events.KindUserSpeechStarted:
		// Barge-in: stop talking over the user.
		c.player.ClearBuffer()
		c.reportSpeaker(speakerUser)
		c.publish(RelayEvent{Type: "user", Detail: "speech started"})

	case events.KindUserSpeechStopped:
		c.reportSpeaker(speakerNone)
		c.publish(RelayEvent{Type: "user", Detail: "speech stopped"})

	default:
		c.logger.Debug("ignoring event", "event", envelope.Event)
	}
	return nil
}

func (c *relayClient) playAudio(envelope events.Envelope) error {
	var encoded string
	if err := json.Unmarshal(envelope.Data, &encoded); err != nil {
		return fmt.Errorf("audio payload is not a string: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("audio payload is not base64: %w", err)
	}

	pcm := data
	if audio.IsWAV(data) {
		var format audio.WAVFormat
		pcm, format, err = audio.DecodeWAV(data)
		if err != nil {
			return err
		}
		if int(format.SampleRate) != c.playbackRate {
			c.logger.Warn("audio sample rate does not match playback",
				"audio_rate", format.SampleRate,
				"playback_rate", c.playbackRate,
			)
		}
	}

	c.player.Play(pcm)
	c.publish(RelayEvent{Type: "audio", Detail: fmt.Sprintf("%d bytes", len(pcm))})
	return nil
}

// publish never blocks the read loop. The UI only shows a recent tail.
func (c *relayClient) publish(event RelayEvent) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}

// closeEvents is called once the read loop ends. Playback callbacks may
// still publish after that.
func (c *relayClient) closeEvents() {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}
