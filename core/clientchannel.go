package orchestration

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/events"
)

const closeWriteTimeout = time.Second

// clientChannel owns the client websocket. Reads happen on one goroutine,
// writes are serialized so frames never interleave.
type clientChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newClientChannel(conn *websocket.Conn, writeTimeout time.Duration) *clientChannel {
	return &clientChannel{conn: conn, writeTimeout: writeTimeout}
}

// read returns the next client event. Frames that are not valid envelopes
// are reported with an error wrapping ErrProtocol, any other error comes from
// the connection itself.
func (c *clientChannel) read() (events.ClientEvent, error) {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	event, err := events.DecodeClientEvent(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return event, nil
}

func (c *clientChannel) send(event events.ServerEvent) error {
	envelope, err := event.Envelope()
	if err != nil {
		return fmt.Errorf("failed to build envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(envelope)
}

func (c *clientChannel) close() error {
	c.closeOnce.Do(func() {
		// WriteControl and Close do not wait for writeMu, so a send stuck on
		// a client that stopped reading cannot hold up teardown. Closing the
		// socket fails that send.
		deadline := time.Now().Add(closeWriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
