package eventbus

import "time"

// Topics published by the conversation core.
const (
	TopicWakeDetected       = "wake:detected"
	TopicConversationEnded  = "conversation:ended"
	TopicConversationPaused = "conversation:paused"
	TopicReadyForNextQuery  = "conversation:ready"
	TopicRecognizerError    = "recognizer:error"
)

// WakeDetectedEvent is published when a wake phrase opens a conversation.
type WakeDetectedEvent struct {
	ConversationID string    `json:"conversation_id"`
	Transcript     string    `json:"transcript"`
	Response       string    `json:"response"`
	At             time.Time `json:"at"`
}

// ConversationEndedEvent is published when an end phrase, the inactivity
// watchdog, or an explicit deactivation closes a conversation.
type ConversationEndedEvent struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response,omitempty"`
	Reason         string `json:"reason"`
}

// ConversationPausedEvent mirrors ConversationEndedEvent for the pause path.
type ConversationPausedEvent struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

// ReadyForNextQueryEvent signals the assistant finished responding and the
// conversation stays open for a follow-up.
type ReadyForNextQueryEvent struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

// RecognizerErrorEvent surfaces non-transient recognizer failures to
// interested listeners. Transient errors are absorbed by the backoff policy
// and never published.
type RecognizerErrorEvent struct {
	Code       string `json:"code"`
	ErrorCount int    `json:"error_count"`
}

// PublishWakeDetected publishes a typed wake event.
func (b *Bus) PublishWakeDetected(ev WakeDetectedEvent) {
	b.Publish(TopicWakeDetected, ev)
}

func (b *Bus) PublishConversationEnded(ev ConversationEndedEvent) {
	b.Publish(TopicConversationEnded, ev)
}

func (b *Bus) PublishConversationPaused(ev ConversationPausedEvent) {
	b.Publish(TopicConversationPaused, ev)
}

func (b *Bus) PublishReadyForNextQuery(ev ReadyForNextQueryEvent) {
	b.Publish(TopicReadyForNextQuery, ev)
}

func (b *Bus) PublishRecognizerError(ev RecognizerErrorEvent) {
	b.Publish(TopicRecognizerError, ev)
}

// OnWakeDetected registers a typed subscriber for wake events.
func (b *Bus) OnWakeDetected(fn func(WakeDetectedEvent)) error {
	return b.Subscribe(TopicWakeDetected, fn)
}

func (b *Bus) OnConversationEnded(fn func(ConversationEndedEvent)) error {
	return b.Subscribe(TopicConversationEnded, fn)
}

func (b *Bus) OnConversationPaused(fn func(ConversationPausedEvent)) error {
	return b.Subscribe(TopicConversationPaused, fn)
}

func (b *Bus) OnReadyForNextQuery(fn func(ReadyForNextQueryEvent)) error {
	return b.Subscribe(TopicReadyForNextQuery, fn)
}

func (b *Bus) OnRecognizerError(fn func(RecognizerErrorEvent)) error {
	return b.Subscribe(TopicRecognizerError, fn)
}
