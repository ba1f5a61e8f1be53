// Package events defines the typed event contract used at every connection
// boundary of the relay.
//
// Frames are decoded once at the boundary into a closed set of variants;
// downstream code type-switches on them and never touches raw JSON.
//
// client events (client -> relay)
//
//   - InputAudioAppended (input_audio_buffer.append): base64 audio chunk.
//   - SpeakerSwitched (current_speaker.switch): "user", "ai" or any other
//     token, kept verbatim.
//   - UnknownClientEvent: any other tag; ignored by the relay.
//
// server events (relay -> client)
//
//   - UserSpeechStarted (user.speech_started): no payload.
//   - UserSpeechStopped (user.speech_stopped): no payload.
//   - OutputAudioAppended (output_audio_buffer.append): base64 audio chunk.
//
// transcription events (backend -> relay)
//
//   - SpeechStarted, SpeechStopped: speech activity boundaries.
//   - TranscriptionCompleted: the transcript of one utterance.
//   - TranscriptionFailed, BackendError: non-fatal backend problems.
//   - UnknownTranscriptionEvent: anything else, ignored.
package events
