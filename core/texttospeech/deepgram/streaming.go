package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Speaker tags are meant for Dia; Deepgram would read them out loud.
var stripReplacer = strings.NewReplacer("[S1]", "", "[S2]", "")

// Synthesize speaks text and returns the produced audio in the order the
// frames arrived. It returns once Deepgram confirms the flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]audio.Chunk, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("request.voice", string(c.voice)))

	text = strings.TrimSpace(stripReplacer.Replace(text))
	if text == "" {
		return nil, nil
	}

	conn, err := c.connectWebsocket(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, err
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		return nil, c.fail(span, fmt.Errorf("failed to send text to deepgram through websocket: %w", err))
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, c.fail(span, fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err))
	}

	var chunks []audio.Chunk
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.fail(span, ctx.Err())
			}
			return nil, c.fail(span, fmt.Errorf("websocket read error: %w", err))
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			chunks = append(chunks, audio.Split(msg, c.options.ChunkSize)...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description,omitempty"`
				ErrMsg      string `json:"err_msg,omitempty"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				_ = conn.WriteJSON(closeMsg)
				chunks = audio.Reindex(chunks)
				span.SetAttributes(attribute.Int("response.chunks", len(chunks)))
				return chunks, nil
			case "Error":
				return nil, c.fail(span, errors.New("deepgram error: "+parsedMsg.Description+" "+parsedMsg.ErrMsg))
			case "Warning":
				logger.Warn("deepgram warning", "description", parsedMsg.Description)
			}
		}
	}
}

func (c *TextToSpeechClient) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", c.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)
