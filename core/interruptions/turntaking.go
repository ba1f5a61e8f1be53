package interruptions

import "sync"

// Speaker is the client's view of who currently holds the floor. Values other
// than SpeakerUser and SpeakerAssistant are kept verbatim and treated as
// unknown.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "ai"
)

func (s Speaker) IsKnown() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

type State int

const (
	StateNormal State = iota
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateInterrupted:
		return "interrupted"
	default:
		return "normal"
	}
}

// TurnTaking tracks the current speaker and whether the assistant was cut
// off. Both values live under one lock so a speech start is always judged
// against the speaker that was current at that moment.
type TurnTaking struct {
	mu      sync.Mutex
	speaker Speaker
	state   State
}

func NewTurnTaking() *TurnTaking {
	return &TurnTaking{}
}

func (t *TurnTaking) SwitchSpeaker(speaker Speaker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speaker = speaker
}

func (t *TurnTaking) Speaker() Speaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaker
}

// SpeechStarted records the start of user speech. The state becomes
// Interrupted only when the assistant is speaking and is reset to Normal
// otherwise, so it always reflects the most recent speech start.
func (t *TurnTaking) SpeechStarted() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.speaker == SpeakerAssistant {
		t.state = StateInterrupted
	} else {
		t.state = StateNormal
	}
	return t.state
}

// Consume reports whether the assistant was interrupted and resets the state
// so the interruption is acknowledged by exactly one reply.
func (t *TurnTaking) Consume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	interrupted := t.state == StateInterrupted
	t.state = StateNormal
	return interrupted
}

func (t *TurnTaking) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
