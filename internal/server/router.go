package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hikawa-dev/stagecal/backend/internal/approval"
	"github.com/hikawa-dev/stagecal/backend/internal/reconcile"
	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"go.uber.org/zap"
)

const operatorHeader = "X-Operator"

var (
	errMissingEngine    = errors.New("reconciliation engine dependency required")
	errMissingApprovals = errors.New("approval processor dependency required")
	errMissingStaging   = errors.New("staging store dependency required")
	errMissingSettings  = errors.New("settings store dependency required")
)

// ReconciliationEngine runs one scan.
type ReconciliationEngine interface {
	Run(ctx context.Context, rangeDays int) (reconcile.Result, error)
}

// ApprovalProcessor exposes single and bulk approve/reject transitions.
type ApprovalProcessor interface {
	Approve(ctx context.Context, actor, proposalID string) error
	Reject(ctx context.Context, actor, proposalID string) error
	ApproveMany(ctx context.Context, actor string, proposalIDs []string) approval.BatchResult
	RejectMany(ctx context.Context, actor string, proposalIDs []string) approval.BatchResult
	ApproveAll(ctx context.Context, actor string) (approval.BatchResult, error)
	RejectAll(ctx context.Context, actor string) (approval.BatchResult, error)
}

// ProposalLister reads the live staging set for the operator UI.
type ProposalLister interface {
	ListAll(ctx context.Context) ([]schedule.Proposal, error)
}

// SettingsStore reads and updates the scan trigger settings.
type SettingsStore interface {
	Get(ctx context.Context) (schedule.ScanSettings, error)
	Update(ctx context.Context, settings schedule.ScanSettings) error
	RecordRun(ctx context.Context, at time.Time) error
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Engine    ReconciliationEngine
	Approvals ApprovalProcessor
	Staging   ProposalLister
	Settings  SettingsStore
	Logger    *zap.Logger
}

// NewHTTPHandler builds the operator-facing router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Engine == nil {
		return nil, errMissingEngine
	}
	if deps.Approvals == nil {
		return nil, errMissingApprovals
	}
	if deps.Staging == nil {
		return nil, errMissingStaging
	}
	if deps.Settings == nil {
		return nil, errMissingSettings
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", operatorHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		engine:    deps.Engine,
		approvals: deps.Approvals,
		staging:   deps.Staging,
		settings:  deps.Settings,
		logger:    logger,
	}

	api := router.Group("/api")
	api.POST("/scan/run", handler.handleScanRun)
	api.GET("/scan/settings", handler.handleGetSettings)
	api.PUT("/scan/settings", handler.handleUpdateSettings)
	api.GET("/proposals", handler.handleListProposals)
	api.POST("/proposals/approve", handler.handleApproveMany)
	api.POST("/proposals/reject", handler.handleRejectMany)
	api.POST("/proposals/approve-all", handler.handleApproveAll)
	api.POST("/proposals/reject-all", handler.handleRejectAll)
	api.POST("/proposals/:id/approve", handler.handleApprove)
	api.POST("/proposals/:id/reject", handler.handleReject)

	return router, nil
}

type httpHandler struct {
	engine    ReconciliationEngine
	approvals ApprovalProcessor
	staging   ProposalLister
	settings  SettingsStore
	logger    *zap.Logger
}

// actor extracts the opaque operator attribution passed in from outside.
func actor(c *gin.Context) string {
	value := strings.TrimSpace(c.GetHeader(operatorHeader))
	if value == "" {
		return "operator"
	}
	return value
}

type scanRequestPayload struct {
	RangeDays int `json:"range_days"`
}

func (h *httpHandler) handleScanRun(c *gin.Context) {
	var request scanRequestPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}

	rangeDays := request.RangeDays
	if rangeDays <= 0 {
		settings, err := h.settings.Get(c.Request.Context())
		if err != nil {
			h.logger.Error("scan settings load failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed"})
			return
		}
		rangeDays = settings.RangeDays
	}

	result, err := h.engine.Run(c.Request.Context(), rangeDays)
	if err != nil {
		h.logger.Error("manual reconciliation run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan_failed"})
		return
	}
	if err := h.settings.RecordRun(c.Request.Context(), time.Now()); err != nil {
		h.logger.Warn("last-run stamp failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, result)
}

type settingsPayload struct {
	Enabled        bool  `json:"enabled"`
	IntervalHours  int   `json:"interval_hours"`
	RangeDays      int   `json:"range_days"`
	LastRunSeconds int64 `json:"last_run_s,omitempty"`
}

func (h *httpHandler) handleGetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("scan settings load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed"})
		return
	}
	c.JSON(http.StatusOK, settingsPayload{
		Enabled:        settings.Enabled,
		IntervalHours:  settings.IntervalHours,
		RangeDays:      settings.RangeDays,
		LastRunSeconds: settings.LastRunSeconds,
	})
}

func (h *httpHandler) handleUpdateSettings(c *gin.Context) {
	var request settingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.IntervalHours <= 0 || request.RangeDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.settings.Update(c.Request.Context(), schedule.ScanSettings{
		Enabled:       request.Enabled,
		IntervalHours: request.IntervalHours,
		RangeDays:     request.RangeDays,
	})
	if err != nil {
		h.logger.Error("scan settings update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type proposalPayload struct {
	ProposalID    string `json:"proposal_id"`
	CreatorID     string `json:"creator_id"`
	CreatorName   string `json:"creator_name"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time,omitempty"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Kind          string `json:"kind"`
	TargetEntryID string `json:"target_entry_id,omitempty"`
	PrevStatus    string `json:"prev_status,omitempty"`
	PrevTitle     string `json:"prev_title,omitempty"`
	CreatedAtS    int64  `json:"created_at_s"`
}

func (h *httpHandler) handleListProposals(c *gin.Context) {
	proposals, err := h.staging.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("staging list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "staging_list_failed"})
		return
	}
	payload := make([]proposalPayload, 0, len(proposals))
	for _, proposal := range proposals {
		item := proposalPayload{
			ProposalID:    proposal.ProposalID,
			CreatorID:     proposal.CreatorID,
			CreatorName:   proposal.CreatorName,
			Date:          proposal.Date,
			StartTime:     proposal.StartTime,
			Title:         proposal.Title,
			Status:        string(proposal.Status),
			Kind:          string(proposal.Kind),
			TargetEntryID: proposal.TargetEntryID,
			CreatedAtS:    proposal.CreatedAtSeconds,
		}
		if proposal.PrevStatus != nil {
			item.PrevStatus = string(*proposal.PrevStatus)
		}
		if proposal.PrevTitle != nil {
			item.PrevTitle = *proposal.PrevTitle
		}
		payload = append(payload, item)
	}
	c.JSON(http.StatusOK, gin.H{"proposals": payload})
}

func (h *httpHandler) handleApprove(c *gin.Context) {
	err := h.approvals.Approve(c.Request.Context(), actor(c), c.Param("id"))
	h.respondSingle(c, "approved", err)
}

func (h *httpHandler) handleReject(c *gin.Context) {
	err := h.approvals.Reject(c.Request.Context(), actor(c), c.Param("id"))
	h.respondSingle(c, "rejected", err)
}

func (h *httpHandler) respondSingle(c *gin.Context, status string, err error) {
	var conflict *schedule.ConflictError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": status})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":            "conflict",
			"conflicting_time": conflict.ConflictingTime,
		})
	case errors.Is(err, schedule.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, schedule.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
	default:
		h.logger.Error("approval call failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

type bulkRequestPayload struct {
	ProposalIDs []string `json:"ids"`
}

func (h *httpHandler) handleApproveMany(c *gin.Context) {
	var request bulkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.ProposalIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	c.JSON(http.StatusOK, h.approvals.ApproveMany(c.Request.Context(), actor(c), request.ProposalIDs))
}

func (h *httpHandler) handleRejectMany(c *gin.Context) {
	var request bulkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.ProposalIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	c.JSON(http.StatusOK, h.approvals.RejectMany(c.Request.Context(), actor(c), request.ProposalIDs))
}

func (h *httpHandler) handleApproveAll(c *gin.Context) {
	result, err := h.approvals.ApproveAll(c.Request.Context(), actor(c))
	if err != nil {
		h.logger.Error("approve-all failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleRejectAll(c *gin.Context) {
	result, err := h.approvals.RejectAll(c.Request.Context(), actor(c))
	if err != nil {
		h.logger.Error("reject-all failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, result)
}
