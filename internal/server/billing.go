package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ragstack/creditledger/internal/billing"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
)

func (s *Server) GetWallet(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	if _, err := s.walletSvc.GetOrCreate(ctx, uid, userEmail(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	info, err := s.billingSvc.WalletInfo(ctx, uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) ListUsage(c *gin.Context) {
	filter := usagedomain.ListFilter{
		AgentID: strings.TrimSpace(c.Query("agent_id")),
		Limit:   intQuery(c, "limit", 50),
		Offset:  intQuery(c, "offset", 0),
	}
	entries, err := s.usageSvc.History(c.Request.Context(), userID(c), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": entries})
}

func (s *Server) UsageSummary(c *gin.Context) {
	summary, err := s.usageSvc.Summary(c.Request.Context(), userID(c), intQuery(c, "days", 30))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) UsageDaily(c *gin.Context) {
	daily, err := s.usageSvc.DailyBreakdown(c.Request.Context(), userID(c), intQuery(c, "days", 30))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily": daily})
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.settingsSvc.ListPlans(c.Request.Context(), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

type preCheckRequest struct {
	QueryLength int `json:"query_length" binding:"min=0"`
	K           int `json:"k" binding:"min=0"`
}

func (s *Server) PreCheckQuery(c *gin.Context) {
	var req preCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	result, err := s.billingSvc.PreCheckQuery(c.Request.Context(), userID(c), req.QueryLength, req.K)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type chargeUsageRequest struct {
	AgentID          *string `json:"agent_id"`
	PromptTokens     int64   `json:"prompt_tokens" binding:"min=0"`
	CompletionTokens int64   `json:"completion_tokens" binding:"min=0"`
	SessionID        *string `json:"session_id"`
	QueryText        *string `json:"query_text"`
}

func (s *Server) ChargeUsage(c *gin.Context) {
	var req chargeUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	result, err := s.billingSvc.ChargeForUsage(c.Request.Context(), billing.ChargeRequest{
		UserID:    userID(c),
		AgentID:   req.AgentID,
		Usage:     billing.TokenUsage{Prompt: req.PromptTokens, Completion: req.CompletionTokens},
		SessionID: req.SessionID,
		QueryText: req.QueryText,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ChargeBotCreation(c *gin.Context) {
	result, err := s.billingSvc.ChargeBotCreation(c.Request.Context(), userID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) SignupGrant(c *gin.Context) {
	balance, err := s.billingSvc.GrantSignupCredits(c.Request.Context(), userID(c), userEmail(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
