package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/billing"
	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// BranchStore is the subset of db.BranchRepository the handler needs.
type BranchStore interface {
	Create(ctx context.Context, b *types.Branch) error
	SoftDelete(ctx context.Context, tenantID, branchID string) error
}

// BranchesHandler creates and removes gym branches. Opening a second
// branch requires both headroom under the plan's branch limit and the
// multi_branch feature.
type BranchesHandler struct {
	store    BranchStore
	checker  CapacityChecker
	features FeatureChecker
	alerts   AlertNotifier
	metrics  DecisionRecorder
	validate *core.Validator
	logger   *slog.Logger
}

// NewBranchesHandler creates a BranchesHandler. alerts and metrics may be
// nil.
func NewBranchesHandler(
	store BranchStore,
	checker CapacityChecker,
	features FeatureChecker,
	alerts AlertNotifier,
	metrics DecisionRecorder,
	validate *core.Validator,
	logger *slog.Logger,
) *BranchesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BranchesHandler{
		store:    store,
		checker:  checker,
		features: features,
		alerts:   alerts,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes mounts the branch endpoints on the v1 router.
func (h *BranchesHandler) RegisterRoutes(r chi.Router) {
	r.Post("/branches", h.CreateBranch)
	r.Delete("/branches/{branchID}", h.DeleteBranch)
}

type createBranchRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

// CreateBranch handles POST /v1/branches.
func (h *BranchesHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req createBranchRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.checker.CheckTenantLimits(r.Context(), actor.TenantID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !report.CanAddBranch {
		h.refuse(w, r, actor.TenantID, report)
		return
	}

	// A tenant that already has a branch needs the multi_branch feature to
	// open another one, independently of the numeric branch limit.
	if report.CurrentBranches >= 1 {
		enabled, err := h.features.HasFeature(r.Context(), actor.TenantID, types.FeatureMultiBranch)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if !enabled {
			if h.metrics != nil {
				h.metrics.RecordLimitRefusal("branch")
			}
			core.Error(w, r, types.NewAppError(
				types.ErrCodeFeatureNotAvailable,
				"current plan does not include multiple branches",
				nil,
			))
			return
		}
	}

	branch := &types.Branch{
		ID:       newBranchID(),
		TenantID: actor.TenantID,
		Name:     req.Name,
		Address:  req.Address,
	}
	if err := h.store.Create(r.Context(), branch); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "branch created",
		"tenant_id", actor.TenantID,
		"branch_id", branch.ID,
	)
	core.JSON(w, r, http.StatusCreated, branch)
}

func (h *BranchesHandler) refuse(w http.ResponseWriter, r *http.Request, tenantID string, report *types.CapacityReport) {
	if h.metrics != nil {
		h.metrics.RecordLimitRefusal("branch")
	}

	code := types.ErrCodeLimitBranches
	kind := types.AlertLimitReached
	if billing.NonpaymentRefusal(report) {
		code = types.ErrCodePaymentSuspended
		kind = types.AlertPaymentSuspended
	}
	if h.alerts != nil {
		if err := h.alerts.LimitRefused(r.Context(), tenantID, kind, report.Reason); err != nil {
			h.logger.WarnContext(r.Context(), "limit refusal alert not delivered",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	core.Error(w, r, types.NewAppError(code, report.Reason, nil))
}

// DeleteBranch handles DELETE /v1/branches/{branchID}.
func (h *BranchesHandler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	branchID := chi.URLParam(r, "branchID")
	if err := h.store.SoftDelete(r.Context(), actor.TenantID, branchID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "branch removed",
		"tenant_id", actor.TenantID,
		"branch_id", branchID,
	)
	w.WriteHeader(http.StatusNoContent)
}
