package orchestration

import "errors"

var (
	// ErrConnection reports that the client or the transcription backend
	// could not be reached or dropped. The session is torn down.
	ErrConnection = errors.New("connection failure")
	// ErrGeneration reports that no usable reply was produced for an
	// utterance. The utterance is dropped, the session continues.
	ErrGeneration = errors.New("generation failure")
	// ErrSynthesis reports that a reply could not be turned into audio. No
	// audio is sent for it, the session continues.
	ErrSynthesis = errors.New("synthesis failure")
	// ErrProtocol reports a client frame that is not a valid envelope. The
	// frame is ignored.
	ErrProtocol = errors.New("protocol violation")
)
