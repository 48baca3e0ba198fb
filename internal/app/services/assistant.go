package services

import (
	"context"
	"errors"
	"time"

	"cipher-server-go/internal/domain/eventbus"
	"cipher-server-go/internal/domain/wake"
	"cipher-server-go/internal/platform/logging"
	"cipher-server-go/internal/platform/storage"
)

// AssistantOptions wires the assistant's collaborators.
type AssistantOptions struct {
	Session       *wake.Session
	Preferences   *storage.PreferenceStore
	Conversations *storage.ConversationStore
	Bus           *eventbus.Bus
	Logger        *logging.Logger
}

// Assistant is the application service in front of the conversation state
// machine. It persists the user's wake toggle, records conversation traces
// and exposes the operation surface the HTTP API is built on.
type Assistant struct {
	session       *wake.Session
	preferences   *storage.PreferenceStore
	conversations *storage.ConversationStore
	bus           *eventbus.Bus
	logger        *logging.Logger
	startedAt     time.Time
}

// NewAssistant builds the service and subscribes it to conversation events.
func NewAssistant(opts AssistantOptions) (*Assistant, error) {
	if opts.Session == nil {
		return nil, errors.New("assistant requires a wake session")
	}
	if opts.Bus == nil {
		return nil, errors.New("assistant requires an event bus")
	}
	if opts.Logger == nil {
		return nil, errors.New("assistant requires a logger")
	}

	a := &Assistant{
		session:       opts.Session,
		preferences:   opts.Preferences,
		conversations: opts.Conversations,
		bus:           opts.Bus,
		logger:        opts.Logger,
		startedAt:     time.Now(),
	}

	if a.conversations != nil {
		if err := a.bus.OnWakeDetected(a.recordWake); err != nil {
			return nil, err
		}
		if err := a.bus.OnConversationEnded(a.recordEnd); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Start launches the conversation state machine.
func (a *Assistant) Start(ctx context.Context) {
	a.session.Start(ctx)
	a.logger.InfoTag("BOOT", "assistant service started")
}

// Close stops the state machine.
func (a *Assistant) Close() {
	a.session.Close()
}

// Status returns a snapshot of the conversation state machine.
func (a *Assistant) Status() wake.State {
	return a.session.Status()
}

// Uptime reports how long the service has been running.
func (a *Assistant) Uptime() time.Duration {
	return time.Since(a.startedAt)
}

// StartListening begins wake-word capture; also the manual retry path after
// an audio failure.
func (a *Assistant) StartListening() {
	a.session.StartListening()
}

// StopListening halts wake-word capture without touching the user preference.
func (a *Assistant) StopListening() {
	a.session.StopListening()
}

// SetEnabled persists the wake toggle and applies it to the running session.
func (a *Assistant) SetEnabled(ctx context.Context, enabled bool) error {
	if a.preferences != nil {
		if err := a.preferences.SetWakeDetectionEnabled(ctx, enabled); err != nil {
			return err
		}
	}
	a.session.SetEnabled(enabled)
	return nil
}

// NotifyActivity re-arms the inactivity watchdog of an active conversation.
func (a *Assistant) NotifyActivity() {
	a.session.NotifyActivity()
}

// ContinueConversation keeps the current conversation open for a follow-up.
func (a *Assistant) ContinueConversation() {
	a.session.ContinueConversation()
}

// DeactivateAndResume forces the conversation back to the waiting state.
func (a *Assistant) DeactivateAndResume() {
	a.session.DeactivateAndResume()
}

// RecentConversations returns the latest persisted conversation traces.
func (a *Assistant) RecentConversations(ctx context.Context, limit int) ([]storage.ConversationRecord, error) {
	if a.conversations == nil {
		return nil, nil
	}
	return a.conversations.Recent(ctx, limit)
}

// recordWake and recordEnd run on bus dispatch workers; persistence is best
// effort and never feeds back into the state machine.

func (a *Assistant) recordWake(ev eventbus.WakeDetectedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.conversations.Begin(ctx, ev.ConversationID, ev.Transcript, ev.At); err != nil {
		a.logger.WarnTag("STORE", "failed to record conversation start: %v", err)
	}
}

func (a *Assistant) recordEnd(ev eventbus.ConversationEndedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.conversations.Finish(ctx, ev.ConversationID, ev.Reason, time.Now()); err != nil {
		a.logger.WarnTag("STORE", "failed to record conversation end: %v", err)
	}
}
