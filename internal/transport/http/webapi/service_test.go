package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"cipher-server-go/internal/app/services"
	"cipher-server-go/internal/domain/analysis"
	"cipher-server-go/internal/domain/eventbus"
	"cipher-server-go/internal/domain/session"
	sessionstore "cipher-server-go/internal/domain/session/store"
	"cipher-server-go/internal/domain/wake"
	"cipher-server-go/internal/platform/config"
	"cipher-server-go/internal/platform/logging"
	"cipher-server-go/internal/platform/storage"
	httptransport "cipher-server-go/internal/transport/http"
)

type stubRecognizer struct{}

func (stubRecognizer) StartListening(context.Context) error { return nil }
func (stubRecognizer) StopListening() error                 { return nil }
func (stubRecognizer) SetListener(wake.Listener)            {}

type testStack struct {
	engine  http.Handler
	session *wake.Session
}

func newTestStack(t *testing.T, analysisSvc *analysis.Service) *testStack {
	t.Helper()

	logger, err := logging.New(logging.Config{Level: "error"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	bus := eventbus.New(2)
	t.Cleanup(bus.Close)

	cfg := config.Default()
	wakeSession := wake.NewSession(wake.Options{
		Config: wake.Config{
			WakePhrases:          cfg.Wake.WakePhrases,
			EndPhrases:           cfg.Wake.EndPhrases,
			PausePhrases:         cfg.Wake.PausePhrases,
			ActivationResponses:  cfg.Wake.ActivationResponses,
			EndResponses:         cfg.Wake.EndResponses,
			PauseResponses:       cfg.Wake.PauseResponses,
			DebounceInterval:     50 * time.Millisecond,
			MaxConsecutiveErrors: 8,
			BaseBackoffDelay:     10 * time.Millisecond,
			BackoffCap:           30 * time.Millisecond,
			CooldownDuration:     60 * time.Millisecond,
			InactivityTimeout:    time.Second,
			ResumeDelay:          10 * time.Millisecond,
			RestartDelay:         10 * time.Millisecond,
		},
		Recognizer: stubRecognizer{},
		Bus:        bus,
		Logger:     logger,
		Picker:     wake.NewResponsePicker(rand.NewSource(1)),
		Enabled:    true,
	})

	assistant, err := services.NewAssistant(services.AssistantOptions{
		Session:       wakeSession,
		Preferences:   storage.NewPreferenceStore(db),
		Conversations: storage.NewConversationStore(db),
		Bus:           bus,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("NewAssistant error: %v", err)
	}
	assistant.Start(context.Background())
	t.Cleanup(assistant.Close)

	tokens, err := session.NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	sessions, err := session.NewManager(session.Options{
		Store:  sessionstore.NewMemory(sessionstore.Config{TTL: time.Minute}),
		Logger: logger,
		Tokens: tokens,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	router, err := httptransport.Build(httptransport.Options{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	NewService(assistant, analysisSvc, sessions, logger).RegisterRoutes(router.API, router.Secured)
	return &testStack{engine: router.Engine, session: wakeSession}
}

func (ts *testStack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testStack) issueToken(t *testing.T) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/session", "", map[string]string{"username": "tester"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue session status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("empty token")
	}
	return resp.Data.Token
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestStack(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Mode    string `json:"mode"`
			Enabled bool   `json:"enabled"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	if resp.Data.Mode != string(wake.ModeWaitingForWakeWord) {
		t.Fatalf("mode = %q", resp.Data.Mode)
	}
	if !resp.Data.Enabled {
		t.Fatal("expected enabled by default")
	}
}

func TestSecuredEndpointsRequireToken(t *testing.T) {
	ts := newTestStack(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/wake/enabled", "", map[string]bool{"enabled": false})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/wake/enabled", "not-a-token", map[string]bool{"enabled": false})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", rec.Code)
	}
}

func TestWakeControlFlow(t *testing.T) {
	ts := newTestStack(t, nil)
	token := ts.issueToken(t)

	rec := ts.do(t, http.MethodGet, "/api/session/verify", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/wake/enabled", token, map[string]bool{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("set enabled status = %d: %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var resp struct {
			Data struct {
				Enabled bool `json:"enabled"`
			} `json:"data"`
		}
		rec = ts.do(t, http.MethodGet, "/api/status", "", nil)
		if json.Unmarshal(rec.Body.Bytes(), &resp) == nil && !resp.Data.Enabled {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, path := range []string{"/api/wake/activity", "/api/wake/continue", "/api/wake/deactivate"} {
		rec = ts.do(t, http.MethodPost, path, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "42."}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(backend.Close)

	logger, err := logging.New(logging.Config{Level: "error"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	analysisSvc, err := analysis.New(analysis.Config{APIKey: "key", BaseURL: backend.URL}, logger)
	if err != nil {
		t.Fatalf("analysis.New error: %v", err)
	}

	ts := newTestStack(t, analysisSvc)
	token := ts.issueToken(t)

	rec := ts.do(t, http.MethodPost, "/api/analyze", token, analysis.Request{Query: "the answer?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data analysis.Result `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Content != "42." {
		t.Fatalf("content = %q", resp.Data.Content)
	}
}

func TestAnalyzeUnavailableWithoutBackend(t *testing.T) {
	ts := newTestStack(t, nil)
	token := ts.issueToken(t)

	rec := ts.do(t, http.MethodPost, "/api/analyze", token, analysis.Request{Query: "anything"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
