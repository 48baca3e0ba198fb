package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cipher-server-go/internal/domain/wake"
	errs "cipher-server-go/internal/platform/errors"
	"cipher-server-go/internal/platform/logging"
)

// RecognizerConfig holds the connection settings for the speech gateway.
type RecognizerConfig struct {
	GatewayURL  string
	AuthToken   string
	DialTimeout time.Duration
}

// Frame types exchanged with the recognizer gateway.
const (
	frameStart      = "start"
	frameStop       = "stop"
	frameTranscript = "transcript"
	frameError      = "error"
)

// frame is the JSON envelope for both directions of the gateway stream.
type frame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	IsFinal   bool   `json:"is_final,omitempty"`
	Code      string `json:"code,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

// Recognizer streams transcripts from an external speech-to-text gateway over
// a websocket. Each StartListening opens a fresh connection; StopListening
// tears it down. A failed dial is reported to the caller and not retried here.
type Recognizer struct {
	cfg    RecognizerConfig
	logger *logging.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	listener  wake.Listener
	listening bool
}

// NewRecognizer builds a gateway client. The connection is not opened until
// StartListening.
func NewRecognizer(cfg RecognizerConfig, logger *logging.Logger) *Recognizer {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Recognizer{
		cfg:    cfg,
		logger: logger,
	}
}

// SetListener installs the callback target for transcripts and errors.
func (r *Recognizer) SetListener(l wake.Listener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// StartListening dials the gateway and begins streaming. Idempotent while a
// stream is already open.
func (r *Recognizer) StartListening(ctx context.Context) error {
	const op = "ws.StartListening"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listening {
		return nil
	}
	if r.cfg.GatewayURL == "" {
		return errs.New(errs.KindRecognizer, op, "gateway url not configured")
	}

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.DialTimeout}
	header := http.Header{}
	if r.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+r.cfg.AuthToken)
	}

	conn, _, err := dialer.DialContext(ctx, r.cfg.GatewayURL, header)
	if err != nil {
		return errs.Wrap(errs.KindRecognizer, op, "dial gateway", err)
	}
	if err := conn.WriteJSON(frame{Type: frameStart}); err != nil {
		_ = conn.Close()
		return errs.Wrap(errs.KindRecognizer, op, "send start frame", err)
	}

	r.conn = conn
	r.listening = true
	go r.readLoop(conn)

	r.logger.DebugTag("RECOGNIZER", "stream opened to %s", r.cfg.GatewayURL)
	return nil
}

// StopListening closes the current stream. Idempotent when no stream is open.
func (r *Recognizer) StopListening() error {
	r.mu.Lock()
	conn := r.conn
	wasListening := r.listening
	r.conn = nil
	r.listening = false
	r.mu.Unlock()

	if !wasListening || conn == nil {
		return nil
	}

	// Best effort: tell the gateway we are done before closing.
	_ = conn.WriteJSON(frame{Type: frameStop})
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := conn.Close()

	r.logger.DebugTag("RECOGNIZER", "stream closed")
	return err
}

// current reports whether conn is still the active stream, detaching it when
// it is not so a superseded read loop stops delivering.
func (r *Recognizer) current(conn *websocket.Conn) (wake.Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener, r.conn == conn && r.listening
}

func (r *Recognizer) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			listener, ok := r.current(conn)
			if !ok {
				// Stream was closed by StopListening; not an error.
				return
			}
			r.mu.Lock()
			if r.conn == conn {
				r.conn = nil
				r.listening = false
			}
			r.mu.Unlock()
			_ = conn.Close()

			r.logger.WarnTag("RECOGNIZER", "stream read failed: %v", err)
			if listener != nil {
				listener.OnError(wake.CodeNetwork, true)
			}
			return
		}

		listener, ok := r.current(conn)
		if !ok {
			return
		}
		if listener == nil {
			continue
		}

		switch f.Type {
		case frameTranscript:
			listener.OnTranscript(f.Text, f.IsFinal)
		case frameError:
			code := f.Code
			if code == "" {
				code = wake.CodeNetwork
			}
			listener.OnError(code, f.Transient)
		default:
			r.logger.DebugTag("RECOGNIZER", "ignoring frame type %q", f.Type)
		}
	}
}
