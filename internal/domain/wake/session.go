package wake

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"cipher-server-go/internal/domain/eventbus"
	"cipher-server-go/internal/platform/logging"
)

// Mode is the current phase of interaction.
type Mode string

const (
	ModeWaitingForWakeWord Mode = "waiting_for_wake_word"
	ModeActiveConversation Mode = "active_conversation"
	// ModePaused is transient: the transition that sets it resolves back to
	// ModeWaitingForWakeWord before the command completes, so it is never
	// observable from Status. Both the pause and end paths fully deactivate
	// and later resume wake-word listening.
	ModePaused Mode = "paused"
)

// Reasons attached to conversation-ended events.
const (
	ReasonEndPhrase   = "end_phrase"
	ReasonInactivity  = "inactivity_timeout"
	ReasonDeactivated = "deactivated"
)

// Config carries the phrase catalog, response pools and timing constants of
// the conversation state machine. Immutable after construction.
type Config struct {
	WakePhrases      []string
	PhoneticVariants []string
	EndPhrases       []string
	PausePhrases     []string

	ActivationResponses   []string
	EndResponses          []string
	PauseResponses        []string
	ContinuationResponses []string

	DebounceInterval     time.Duration
	MaxConsecutiveErrors int
	BaseBackoffDelay     time.Duration
	BackoffCap           time.Duration
	CooldownDuration     time.Duration
	InactivityTimeout    time.Duration
	ResumeDelay          time.Duration
	RestartDelay         time.Duration
}

// Callbacks are registrable handlers invoked on the session goroutine.
// They must hand work off without blocking.
type Callbacks struct {
	OnWakeWordDetected   func()
	OnActivationResponse func(text string)
	OnConversationEnded  func()
	OnConversationPaused func()
}

// State is a point-in-time snapshot of the session for observers.
type State struct {
	Mode           Mode
	Listening      bool
	Enabled        bool
	ErrorCount     int
	ConversationID string
}

// Options wires a Session's collaborators.
type Options struct {
	Config     Config
	Recognizer Recognizer
	Bus        *eventbus.Bus
	Logger     *logging.Logger
	Picker     *ResponsePicker
	Callbacks  Callbacks

	// Enabled is the persisted user preference loaded at startup.
	Enabled bool
}

// Session owns the conversation state machine. All mutation happens on one
// goroutine; recognizer callbacks, timer firings and API calls are marshaled
// into it through a command channel.
type Session struct {
	cfg        Config
	recognizer Recognizer
	bus        *eventbus.Bus
	logger     *logging.Logger
	picker     *ResponsePicker
	callbacks  Callbacks

	matcher      *Matcher
	endPhrases   *PhraseSet
	pausePhrases *PhraseSet
	backoff      BackoffPolicy

	cmdCh    chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	// startMu guards started: until Start launches the owner goroutine the
	// state fields have no owner, and Close/Status must not wait on it.
	startMu sync.Mutex
	started bool

	ctx context.Context

	// Owned exclusively by the run goroutine.
	mode           Mode
	listening      bool
	enabled        bool
	lastWakeAt     time.Time
	errorCount     int
	conversationID string

	// epoch invalidates pending listen-cycle delays whenever a transition
	// supersedes them. The watchdog is guarded by conversation ID instead,
	// because it must survive transitions that only touch the listen cycle.
	epoch uint64

	watchdog     *Watchdog
	retryTimer   *Watchdog
	resumeTimer  *Watchdog
	restartTimer *Watchdog
}

// NewSession builds a stopped session; call Start to begin processing.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger, _ = logging.New(logging.Config{Level: "error"})
	}
	picker := opts.Picker
	if picker == nil {
		picker = NewResponsePicker(rand.NewSource(time.Now().UnixNano()))
	}

	return &Session{
		cfg:        opts.Config,
		recognizer: opts.Recognizer,
		bus:        opts.Bus,
		logger:     logger,
		picker:     picker,
		callbacks:  opts.Callbacks,

		matcher:      NewMatcher(opts.Config.WakePhrases, opts.Config.PhoneticVariants),
		endPhrases:   NewPhraseSet(opts.Config.EndPhrases),
		pausePhrases: NewPhraseSet(opts.Config.PausePhrases),
		backoff: BackoffPolicy{
			BaseDelay: opts.Config.BaseBackoffDelay,
			Cap:       opts.Config.BackoffCap,
			MaxErrors: opts.Config.MaxConsecutiveErrors,
			Cooldown:  opts.Config.CooldownDuration,
		},

		cmdCh:  make(chan func(), 64),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),

		mode:    ModeWaitingForWakeWord,
		enabled: opts.Enabled,

		watchdog:     NewWatchdog(),
		retryTimer:   NewWatchdog(),
		resumeTimer:  NewWatchdog(),
		restartTimer: NewWatchdog(),
	}
}

// Start launches the owner goroutine and, when enabled, begins wake-word
// listening. ctx bounds recognizer start attempts for the session lifetime.
// Starting twice, or after Close, is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.started = true

	s.ctx = ctx
	s.recognizer.SetListener(s)
	go s.run()
	s.post(func() {
		s.startEngine()
	})
}

// Close stops the session: listening ends, all pending timers are cancelled.
// Safe to call on a session that was never started.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if !started {
		return
	}
	<-s.doneCh
}

func (s *Session) run() {
	defer close(s.doneCh)

	for {
		select {
		case fn := <-s.cmdCh:
			fn()
		case <-s.stopCh:
			s.teardown()
			return
		}
	}
}

func (s *Session) teardown() {
	s.watchdog.Cancel()
	s.cancelDelays()
	s.stopEngine()
}

// post marshals a command into the owner goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.cmdCh <- fn:
	case <-s.stopCh:
	}
}

// postAsync never blocks the caller; timer callbacks use it because they run
// under the timer lock, which the owner goroutine also takes when cancelling.
func (s *Session) postAsync(fn func()) {
	select {
	case s.cmdCh <- fn:
	default:
		go s.post(fn)
	}
}

// OnTranscript implements Listener. Called from the recognizer's delivery
// goroutine.
func (s *Session) OnTranscript(text string, isFinal bool) {
	s.post(func() {
		s.handleTranscript(text, isFinal)
	})
}

// OnError implements Listener.
func (s *Session) OnError(code string, transient bool) {
	s.post(func() {
		s.handleError(code, transient)
	})
}

// StartListening begins wake-word capture if enabled and not in an active
// conversation. Also the manual retry path after an audio session failure.
func (s *Session) StartListening() {
	s.post(func() {
		if s.mode == ModeActiveConversation {
			return
		}
		s.startEngine()
	})
}

// StopListening stops wake-word capture and cancels pending listen-cycle
// delays. The conversation mode is left untouched.
func (s *Session) StopListening() {
	s.post(func() {
		s.epoch++
		s.cancelDelays()
		s.stopEngine()
	})
}

// SetEnabled updates the user preference. Disabling stops listening
// immediately with no auto-restart; enabling resumes waiting for the wake
// word unless a conversation is already active.
func (s *Session) SetEnabled(enabled bool) {
	s.post(func() {
		s.enabled = enabled
		s.epoch++
		if !enabled {
			s.cancelDelays()
			s.stopEngine()
			s.logger.InfoTag("WAKE", "wake-word detection disabled")
			return
		}
		s.logger.InfoTag("WAKE", "wake-word detection enabled")
		if s.mode != ModeActiveConversation && !s.listening {
			s.mode = ModeWaitingForWakeWord
			s.startEngine()
		}
	})
}

// NotifyActivity re-arms the inactivity watchdog for the current
// conversation.
func (s *Session) NotifyActivity() {
	s.post(func() {
		if s.mode == ModeActiveConversation {
			s.watchdog.Rearm()
		}
	})
}

// ContinueConversation signals the assistant finished responding; the
// conversation stays open for a follow-up query.
func (s *Session) ContinueConversation() {
	s.post(func() {
		if s.mode != ModeActiveConversation {
			return
		}
		s.watchdog.Rearm()
		response := s.picker.Pick(s.cfg.ContinuationResponses)
		if s.bus != nil {
			s.bus.PublishReadyForNextQuery(eventbus.ReadyForNextQueryEvent{
				ConversationID: s.conversationID,
				Response:       response,
			})
		}
	})
}

// DeactivateAndResume forces an active conversation back to the waiting
// state, with the usual delayed resume of wake-word listening.
func (s *Session) DeactivateAndResume() {
	s.post(func() {
		if s.mode != ModeActiveConversation {
			return
		}
		s.finish(ReasonDeactivated)
	})
}

// Status returns a snapshot of the session state.
func (s *Session) Status() State {
	s.startMu.Lock()
	if !s.started {
		// No owner goroutine yet; the fields are still only ours.
		st := State{
			Mode:           s.mode,
			Listening:      s.listening,
			Enabled:        s.enabled,
			ErrorCount:     s.errorCount,
			ConversationID: s.conversationID,
		}
		s.startMu.Unlock()
		return st
	}
	s.startMu.Unlock()

	reply := make(chan State, 1)
	s.post(func() {
		reply <- State{
			Mode:           s.mode,
			Listening:      s.listening,
			Enabled:        s.enabled,
			ErrorCount:     s.errorCount,
			ConversationID: s.conversationID,
		}
	})
	select {
	case st := <-reply:
		return st
	case <-s.doneCh:
		return State{Mode: s.mode, Enabled: s.enabled}
	}
}

// --- transitions; every method below runs on the owner goroutine ---

func (s *Session) handleTranscript(text string, isFinal bool) {
	// Any successful recognition clears the consecutive error streak.
	s.errorCount = 0

	normalized := Normalize(text)
	if normalized == "" {
		return
	}

	switch s.mode {
	case ModeWaitingForWakeWord:
		// A transcript may be queued behind a disable command; the disable
		// wins. An active conversation is unaffected, it still closes on its
		// end phrase or watchdog.
		if !s.enabled {
			return
		}
		if !s.matcher.IsWakeWord(normalized) {
			return
		}
		now := time.Now()
		if !s.lastWakeAt.IsZero() && now.Sub(s.lastWakeAt) < s.cfg.DebounceInterval {
			s.logger.DebugTag("WAKE", "wake match within debounce window, ignored: %q", normalized)
			return
		}
		s.lastWakeAt = now
		s.activate(normalized)

	case ModeActiveConversation:
		switch {
		case s.endPhrases.Contains(normalized):
			s.finish(ReasonEndPhrase)
		case s.pausePhrases.Contains(normalized):
			s.pause()
		default:
			// A recognized query counts as activity.
			s.watchdog.Rearm()
		}
	}
}

func (s *Session) activate(transcript string) {
	s.epoch++
	s.mode = ModeActiveConversation
	s.conversationID = uuid.New().String()

	// The wake-word tap is released while the external full-query listener
	// runs; listening and an active conversation are mutually exclusive.
	s.cancelDelays()
	s.stopEngine()

	convID := s.conversationID
	s.watchdog.Arm(s.cfg.InactivityTimeout, func() {
		s.postAsync(func() {
			s.watchdogFired(convID)
		})
	})

	response := s.picker.Pick(s.cfg.ActivationResponses)
	s.logger.InfoTag("WAKE", "wake word detected: %q, conversation %s", transcript, convID)

	if s.bus != nil {
		s.bus.PublishWakeDetected(eventbus.WakeDetectedEvent{
			ConversationID: convID,
			Transcript:     transcript,
			Response:       response,
			At:             s.lastWakeAt,
		})
	}
	if cb := s.callbacks.OnWakeWordDetected; cb != nil {
		cb()
	}
	if cb := s.callbacks.OnActivationResponse; cb != nil {
		cb(response)
	}
}

func (s *Session) finish(reason string) {
	s.watchdog.Cancel()
	s.epoch++

	convID := s.conversationID
	s.conversationID = ""
	s.mode = ModeWaitingForWakeWord

	var response string
	if reason == ReasonEndPhrase {
		response = s.picker.Pick(s.cfg.EndResponses)
	}
	s.logger.InfoTag("WAKE", "conversation %s ended (%s)", convID, reason)

	if s.bus != nil {
		s.bus.PublishConversationEnded(eventbus.ConversationEndedEvent{
			ConversationID: convID,
			Response:       response,
			Reason:         reason,
		})
	}
	if cb := s.callbacks.OnConversationEnded; cb != nil {
		cb()
	}

	s.scheduleResume()
}

func (s *Session) pause() {
	s.watchdog.Cancel()
	s.epoch++

	convID := s.conversationID
	s.mode = ModePaused

	response := s.picker.Pick(s.cfg.PauseResponses)
	s.logger.InfoTag("WAKE", "conversation %s paused", convID)

	if s.bus != nil {
		s.bus.PublishConversationPaused(eventbus.ConversationPausedEvent{
			ConversationID: convID,
			Response:       response,
		})
	}
	if cb := s.callbacks.OnConversationPaused; cb != nil {
		cb()
	}

	// Paused resolves immediately: no suspended context is preserved, the
	// path differs from finish only in which event and response go out.
	s.mode = ModeWaitingForWakeWord
	s.conversationID = ""
	s.scheduleResume()
}

func (s *Session) watchdogFired(convID string) {
	if s.mode != ModeActiveConversation || s.conversationID != convID {
		return
	}
	s.logger.InfoTag("WAKE", "conversation %s timed out from inactivity", convID)
	s.finish(ReasonInactivity)
}

func (s *Session) handleError(code string, transient bool) {
	if s.mode == ModeActiveConversation || !s.enabled {
		return
	}

	// Release the tap while waiting out the delay.
	s.stopEngine()

	if code == CodeNoSpeech {
		// The recognizer's own end-of-utterance timeout: routine noise, not
		// a failure. Restart the listen cycle without counting it.
		s.scheduleRestart()
		return
	}

	s.errorCount++
	action := s.backoff.Next(s.errorCount)
	epoch := s.epoch

	if action.IsCooldown {
		s.logger.WarnTag("WAKE", "%d consecutive recognizer errors (last %q), cooling down for %s",
			s.errorCount, code, action.Delay)
		if s.bus != nil {
			s.bus.PublishRecognizerError(eventbus.RecognizerErrorEvent{
				Code:       code,
				ErrorCount: s.errorCount,
			})
		}
		s.retryTimer.Arm(action.Delay, func() {
			s.postAsync(func() {
				if epoch != s.epoch {
					return
				}
				s.errorCount = 0
				s.scheduleRestart()
			})
		})
		return
	}

	s.logger.DebugTag("WAKE", "recognizer error %q (count %d), retrying in %s",
		code, s.errorCount, action.Delay)
	s.retryTimer.Arm(action.Delay, func() {
		s.postAsync(func() {
			if epoch != s.epoch {
				return
			}
			s.scheduleRestart()
		})
	})
}

// scheduleResume restarts wake-word listening after the configured delay so
// the assistant's closing response is not picked up by the wake listener.
func (s *Session) scheduleResume() {
	epoch := s.epoch
	s.resumeTimer.Arm(s.cfg.ResumeDelay, func() {
		s.postAsync(func() {
			if epoch != s.epoch {
				return
			}
			s.startEngine()
		})
	})
}

// scheduleRestart performs a full stop, then a start after the restart delay,
// guaranteeing the audio tap is released before reacquisition.
func (s *Session) scheduleRestart() {
	s.stopEngine()
	epoch := s.epoch
	s.restartTimer.Arm(s.cfg.RestartDelay, func() {
		s.postAsync(func() {
			if epoch != s.epoch {
				return
			}
			s.startEngine()
		})
	})
}

func (s *Session) cancelDelays() {
	s.retryTimer.Cancel()
	s.resumeTimer.Cancel()
	s.restartTimer.Cancel()
}

func (s *Session) startEngine() {
	if s.listening || !s.enabled {
		return
	}
	if err := s.recognizer.StartListening(s.ctx); err != nil {
		// Audio/session acquisition failures are not retried automatically;
		// a later StartListening call may try again.
		s.logger.ErrorTag("WAKE", "failed to start wake-word listening: %v", err)
		return
	}
	s.listening = true
	s.logger.DebugTag("WAKE", "wake-word listening started")
}

func (s *Session) stopEngine() {
	if !s.listening {
		return
	}
	if err := s.recognizer.StopListening(); err != nil {
		s.logger.WarnTag("WAKE", "failed to stop wake-word listening: %v", err)
	}
	s.listening = false
	s.logger.DebugTag("WAKE", "wake-word listening stopped")
}
