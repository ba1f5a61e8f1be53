package orchestration

import "time"

// Metrics receives session level measurements. Implementations must be safe
// for concurrent use.
type Metrics interface {
	SessionStarted()
	SessionEnded()
	UtteranceDispatched()
	UtteranceDropped()
	GenerationFailed()
	SynthesisFailed()
	AudioChunkSent()
	// ResponseLatency is the time from a completed transcript to the first
	// audio chunk sent for it.
	ResponseLatency(time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted()               {}
func (noopMetrics) SessionEnded()                 {}
func (noopMetrics) UtteranceDispatched()          {}
func (noopMetrics) UtteranceDropped()             {}
func (noopMetrics) GenerationFailed()             {}
func (noopMetrics) SynthesisFailed()              {}
func (noopMetrics) AudioChunkSent()               {}
func (noopMetrics) ResponseLatency(time.Duration) {}
