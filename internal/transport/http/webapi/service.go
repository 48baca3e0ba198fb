package webapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"cipher-server-go/internal/app/services"
	"cipher-server-go/internal/domain/analysis"
	"cipher-server-go/internal/domain/session"
	"cipher-server-go/internal/platform/logging"
	httptransport "cipher-server-go/internal/transport/http"
)

// Service exposes the assistant over HTTP.
type Service struct {
	assistant *services.Assistant
	analysis  *analysis.Service
	sessions  *session.Manager
	logger    *logging.Logger
}

// NewService builds the web API. The analysis service may be nil when no
// completion backend is configured; its endpoint then reports unavailability.
func NewService(
	assistant *services.Assistant,
	analysisSvc *analysis.Service,
	sessions *session.Manager,
	logger *logging.Logger,
) *Service {
	return &Service{
		assistant: assistant,
		analysis:  analysisSvc,
		sessions:  sessions,
		logger:    logger,
	}
}

// RegisterRoutes binds the public and token-protected endpoints.
func (s *Service) RegisterRoutes(api, secured *gin.RouterGroup) {
	api.GET("/status", s.handleStatus)
	api.GET("/system", s.handleSystem)
	api.POST("/session", s.handleIssueSession)

	if secured == nil {
		secured = api
	}
	secured.GET("/session/verify", s.handleVerifySession)
	secured.POST("/wake/enabled", s.handleSetEnabled)
	secured.POST("/wake/activity", s.handleActivity)
	secured.POST("/wake/continue", s.handleContinue)
	secured.POST("/wake/deactivate", s.handleDeactivate)
	secured.POST("/analyze", s.handleAnalyze)
}

type statusPayload struct {
	Mode           string               `json:"mode"`
	Listening      bool                 `json:"listening"`
	Enabled        bool                 `json:"enabled"`
	ErrorCount     int                  `json:"error_count"`
	ConversationID string               `json:"conversation_id,omitempty"`
	UptimeSeconds  int64                `json:"uptime_seconds"`
	Recent         []conversationRecord `json:"recent_conversations"`
}

type conversationRecord struct {
	ConversationID string     `json:"conversation_id"`
	WakeTranscript string     `json:"wake_transcript"`
	EndReason      string     `json:"end_reason,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

func (s *Service) handleStatus(c *gin.Context) {
	st := s.assistant.Status()

	payload := statusPayload{
		Mode:           string(st.Mode),
		Listening:      st.Listening,
		Enabled:        st.Enabled,
		ErrorCount:     st.ErrorCount,
		ConversationID: st.ConversationID,
		UptimeSeconds:  int64(s.assistant.Uptime().Seconds()),
		Recent:         []conversationRecord{},
	}

	records, err := s.assistant.RecentConversations(c.Request.Context(), 10)
	if err != nil {
		s.logger.WarnTag("HTTP", "failed to load recent conversations: %v", err)
	}
	for _, r := range records {
		payload.Recent = append(payload.Recent, conversationRecord{
			ConversationID: r.ConversationID,
			WakeTranscript: r.WakeTranscript,
			EndReason:      r.EndReason,
			StartedAt:      r.StartedAt,
			EndedAt:        r.EndedAt,
		})
	}

	httptransport.RespondSuccess(c, http.StatusOK, payload, "")
}

func (s *Service) handleSystem(c *gin.Context) {
	info := gin.H{
		"goroutines": runtime.NumGoroutine(),
		"go_version": runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory_percent"] = vm.UsedPercent
		info["memory_total_mb"] = vm.Total / 1024 / 1024
		info["memory_used_mb"] = vm.Used / 1024 / 1024
	}

	httptransport.RespondSuccess(c, http.StatusOK, info, "")
}

type issueSessionRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Service) handleIssueSession(c *gin.Context) {
	if s.sessions == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "session service not configured", nil)
		return
	}

	var req issueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "username is required", nil)
		return
	}

	cred, token, err := s.sessions.Issue(c.Request.Context(), req.Username, c.ClientIP(), nil)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to issue session", nil)
		return
	}

	httptransport.RespondSuccess(c, http.StatusCreated, gin.H{
		"client_id":  cred.ClientID,
		"token":      token,
		"expires_at": cred.ExpiresAt,
	}, "session issued")
}

func (s *Service) handleVerifySession(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"client_id": c.GetString("client_id"),
		"username":  c.GetString("client_username"),
	}, "")
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Service) handleSetEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		httptransport.RespondError(c, http.StatusBadRequest, "enabled is required", nil)
		return
	}

	if err := s.assistant.SetEnabled(c.Request.Context(), *req.Enabled); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to persist preference", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"enabled": *req.Enabled}, "")
}

func (s *Service) handleActivity(c *gin.Context) {
	s.assistant.NotifyActivity()
	httptransport.RespondSuccess(c, http.StatusOK, nil, "")
}

func (s *Service) handleContinue(c *gin.Context) {
	s.assistant.ContinueConversation()
	httptransport.RespondSuccess(c, http.StatusOK, nil, "")
}

func (s *Service) handleDeactivate(c *gin.Context) {
	s.assistant.DeactivateAndResume()
	httptransport.RespondSuccess(c, http.StatusOK, nil, "")
}

func (s *Service) handleAnalyze(c *gin.Context) {
	if s.analysis == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "analysis backend not configured", nil)
		return
	}

	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	result, err := s.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, "analysis failed", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, result, "")
}
