package orchestration

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type utterance struct {
	transcript string
	receivedAt time.Time
}

// utteranceWorkers answers queued utterances on a fixed number of workers.
// The queue is bounded and enqueue never blocks, so a slow backend cannot
// stall the transcription read loop.
type utteranceWorkers struct {
	queue       chan utterance
	concurrency int
	handle      func(context.Context, utterance)
}

func newUtteranceWorkers(concurrency, queueSize int, handle func(context.Context, utterance)) *utteranceWorkers {
	return &utteranceWorkers{
		queue:       make(chan utterance, queueSize),
		concurrency: max(concurrency, 1),
		handle:      handle,
	}
}

func (w *utteranceWorkers) enqueue(u utterance) bool {
	select {
	case w.queue <- u:
		return true
	default:
		return false
	}
}

// run blocks until ctx is done. Queued utterances that were not picked up by
// then are discarded.
func (w *utteranceWorkers) run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for range w.concurrency {
		group.Go(func() error {
			return panicSafeNamedWorker("utterance", w.work)(ctx)
		})
	}
	return group.Wait()
}

func (w *utteranceWorkers) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-w.queue:
			if ctx.Err() != nil {
				return nil
			}
			w.handle(ctx, u)
		}
	}
}
