package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// LimitsHandler serves the advisory capacity report for the authenticated
// tenant. The report never refuses anything by itself; mutation endpoints
// re-run the check at write time.
type LimitsHandler struct {
	checker CapacityChecker
	logger  *slog.Logger
}

// NewLimitsHandler creates a LimitsHandler.
func NewLimitsHandler(checker CapacityChecker, logger *slog.Logger) *LimitsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LimitsHandler{checker: checker, logger: logger}
}

// RegisterRoutes mounts the limits endpoint on the v1 router.
func (h *LimitsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/limits", h.GetLimits)
}

// limitsResponse wraps the capacity report with display-friendly limit
// strings so unlimited plans do not leak the sentinel integer.
type limitsResponse struct {
	types.CapacityReport
	MemberLimitDisplay string `json:"member_limit_display"`
	BranchLimitDisplay string `json:"branch_limit_display"`
}

// GetLimits handles GET /v1/limits.
func (h *LimitsHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	report, err := h.checker.CheckTenantLimits(r.Context(), actor.TenantID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "capacity check failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, limitsResponse{
		CapacityReport:     *report,
		MemberLimitDisplay: types.LimitDisplay(report.MemberLimit),
		BranchLimitDisplay: types.LimitDisplay(report.BranchLimit),
	})
}
