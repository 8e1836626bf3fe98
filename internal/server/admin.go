package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/ragstack/creditledger/internal/audit/domain"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	"github.com/shopspring/decimal"
)

func (s *Server) AdminListSettings(c *gin.Context) {
	settings, err := s.settingsSvc.GetAllSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type updateSettingRequest struct {
	Value any `json:"value" binding:"required"`
}

func (s *Server) AdminUpdateSetting(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	err := s.settingsSvc.UpdateSetting(ctx, settingsdomain.UpdateSettingRequest{
		Key:       key,
		Value:     req.Value,
		UpdatedBy: adminID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "UPDATE_SETTING", "setting", key,
		map[string]any{"value": req.Value})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AdminListPlans(c *gin.Context) {
	plans, err := s.settingsSvc.ListPlans(c.Request.Context(), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

type upsertPlanRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	AmountMinor  int64  `json:"amount_minor" binding:"min=0"`
	BaseCredits  string `json:"base_credits" binding:"required"`
	BonusCredits string `json:"bonus_credits"`
	IsActive     *bool  `json:"is_active"`
	SortOrder    *int   `json:"sort_order"`
}

func (s *Server) AdminUpsertPlan(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var req upsertPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	base, err := decimal.NewFromString(req.BaseCredits)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	bonus := decimal.Zero
	if req.BonusCredits != "" {
		if bonus, err = decimal.NewFromString(req.BonusCredits); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	ctx := c.Request.Context()
	plan, err := s.settingsSvc.UpsertPlan(ctx, settingsdomain.UpsertPlanRequest{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		AmountMinor:  req.AmountMinor,
		BaseCredits:  base,
		BonusCredits: bonus,
		IsActive:     req.IsActive,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "UPSERT_PLAN", "plan", id, nil)
	c.JSON(http.StatusOK, plan)
}

func (s *Server) AdminDeactivatePlan(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()
	if err := s.settingsSvc.DeactivatePlan(ctx, id); err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "DEACTIVATE_PLAN", "plan", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AdminGetWallet(c *gin.Context) {
	info, err := s.walletSvc.Info(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type addCreditsRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) AdminAddCredits(c *gin.Context) {
	target := c.Param("id")
	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	balance, err := s.walletSvc.Credit(ctx, target, amount, walletdomain.SourceAdmin)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "ADD_CREDITS", "wallet", target,
		map[string]any{"amount": amount.String(), "reason": req.Reason})
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) AdminSuspendUser(c *gin.Context) {
	target := c.Param("id")
	ctx := c.Request.Context()
	if err := s.walletSvc.Suspend(ctx, target); err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "SUSPEND_USER", "wallet", target, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AdminUnsuspendUser(c *gin.Context) {
	target := c.Param("id")
	ctx := c.Request.Context()
	if err := s.walletSvc.Unsuspend(ctx, target); err != nil {
		AbortWithError(c, err)
		return
	}
	s.auditSvc.Record(ctx, adminID(c), "UNSUSPEND_USER", "wallet", target, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AdminListAudit(c *gin.Context) {
	entries, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		ActorID: strings.TrimSpace(c.Query("actor_id")),
		Action:  strings.TrimSpace(c.Query("action")),
		Limit:   intQuery(c, "limit", 50),
		Offset:  intQuery(c, "offset", 0),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": entries})
}
