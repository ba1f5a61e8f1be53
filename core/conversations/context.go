package conversations

import (
	"errors"
	"slices"
	"sync"

	"github.com/koscakluka/ema-relay/core/llms"
)

// ErrClosed is returned when appending to a context whose session has ended.
var ErrClosed = errors.New("conversation context closed")

// Context is the ordered, append-only message history of one session.
//
// It is safe for concurrent use. Readers always receive a copy.
type Context struct {
	mu       sync.Mutex
	messages []llms.Message
	closed   bool
}

// NewContext creates a context seeded with the given messages, usually the
// system prompt.
func NewContext(seed ...llms.Message) *Context {
	return &Context{messages: slices.Clone(seed)}
}

// Append adds messages as one atomic block. Either all of them are appended
// or, if the context is closed, none.
func (c *Context) Append(messages ...llms.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.messages = append(c.messages, messages...)
	return nil
}

// Messages returns a snapshot of the history, oldest first.
func (c *Context) Messages() []llms.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Close stops the context from accepting new messages. Repeated calls are
// ignored.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
