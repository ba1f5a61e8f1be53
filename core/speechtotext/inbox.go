package speechtotext

import (
	"context"
	"sync"

	"github.com/koscakluka/ema-relay/core/events"
)

// Inbox hands decoded events from a backend read loop to Recv. The read loop
// owns Push. Finish may be called from any goroutine, for example when a
// write to the backend fails. Recv reports the terminal error once the
// buffered events are drained.
type Inbox struct {
	events chan events.TranscriptionEvent
	done   chan struct{}

	finishOnce sync.Once
	err        error
}

func NewInbox(size int) *Inbox {
	return &Inbox{
		events: make(chan events.TranscriptionEvent, size),
		done:   make(chan struct{}),
	}
}

// Push queues an event. It blocks while the inbox is full and returns false
// once the inbox is finished.
func (i *Inbox) Push(event events.TranscriptionEvent) bool {
	select {
	case <-i.done:
		return false
	default:
	}

	select {
	case i.events <- event:
		return true
	case <-i.done:
		return false
	}
}

// Finish ends the inbox with err, or ErrStreamClosed when err is nil. Only the
// first call has any effect.
func (i *Inbox) Finish(err error) {
	i.finishOnce.Do(func() {
		if err == nil {
			err = ErrStreamClosed
		}
		i.err = err
		close(i.done)
	})
}

func (i *Inbox) Done() <-chan struct{} {
	return i.done
}

func (i *Inbox) Recv(ctx context.Context) (events.TranscriptionEvent, error) {
	select {
	case event := <-i.events:
		return event, nil
	default:
	}

	select {
	case event := <-i.events:
		return event, nil
	case <-i.done:
		select {
		case event := <-i.events:
			return event, nil
		default:
		}
		return nil, i.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
