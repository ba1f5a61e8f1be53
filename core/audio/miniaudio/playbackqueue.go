package miniaudio

import "sync"

// playbackQueue holds PCM waiting for the playback device. The device
// callback drains it in periods, producers append whole chunks.
//
// The queue reports the two edges a voice client cares about: audio starting
// to play after silence, and the last queued byte being played.
type playbackQueue struct {
	mu      sync.Mutex
	pending []byte
	playing bool

	onStarted func()
	onDrained func()
}

func (q *playbackQueue) setCallbacks(onStarted, onDrained func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onStarted = onStarted
	q.onDrained = onDrained
}

func (q *playbackQueue) push(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	q.mu.Lock()
	q.pending = append(q.pending, pcm...)
	started := !q.playing
	q.playing = true
	onStarted := q.onStarted
	q.mu.Unlock()

	if started && onStarted != nil {
		onStarted()
	}
}

// fill copies the next len(out) bytes into out and zeroes whatever it could
// not fill. It returns the number of queued bytes copied.
func (q *playbackQueue) fill(out []byte) int {
	q.mu.Lock()
	n := copy(out, q.pending)
	q.pending = q.pending[n:]
	drained := q.playing && len(q.pending) == 0
	if drained {
		q.playing = false
		q.pending = nil
	}
	onDrained := q.onDrained
	q.mu.Unlock()

	clear(out[n:])
	if drained && onDrained != nil {
		// The device callback must not block.
		go onDrained()
	}
	return n
}

// clear drops queued audio without reporting a drain.
func (q *playbackQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.playing = false
}

func (q *playbackQueue) buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
