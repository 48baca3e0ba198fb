package wake

import "context"

// Error codes surfaced by recognizer implementations. CodeNoSpeech is the
// recognizer's own end-of-utterance timeout: routine noise that restarts the
// listen cycle without counting as a failure.
const (
	CodeNoSpeech = "no_speech_detected"
	CodeNetwork  = "network"
	CodeAudio    = "audio_session"
)

// Listener receives recognition results on the recognizer's own delivery
// goroutine. Implementations must marshal into their own execution context
// before touching state.
type Listener interface {
	// OnTranscript delivers a recognized text fragment.
	OnTranscript(text string, isFinal bool)

	// OnError delivers a recognition failure. Transient errors are expected
	// to be recovered by the caller's retry policy.
	OnError(code string, transient bool)
}

// Recognizer is the port to the external streaming speech-to-text engine
// used for wake-word capture. StartListening and StopListening are idempotent
// no-ops when already in the requested state. A failure to acquire the audio
// session aborts StartListening; callers may retry by calling it again.
type Recognizer interface {
	StartListening(ctx context.Context) error
	StopListening() error
	SetListener(l Listener)
}
