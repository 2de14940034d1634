package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// BillCalculator computes a tenant's current monthly bill.
// billing.Calculator is the production implementation.
type BillCalculator interface {
	CalculateMonthlyBill(ctx context.Context, tenantID string) (*types.MonthlyBill, error)
}

// BillingHandler serves the billing preview and the feature gate lookup.
type BillingHandler struct {
	calculator BillCalculator
	features   FeatureChecker
	logger     *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(calculator BillCalculator, features FeatureChecker, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		calculator: calculator,
		features:   features,
		logger:     logger,
	}
}

// RegisterRoutes mounts the billing endpoints on the v1 router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing/preview", h.PreviewBill)
	r.Get("/features/{feature}", h.CheckFeature)
}

// PreviewBill handles GET /v1/billing/preview. The preview reflects the
// current member count; it is not an invoice and carries no period dates.
func (h *BillingHandler) PreviewBill(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	bill, err := h.calculator.CalculateMonthlyBill(r.Context(), actor.TenantID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "bill calculation failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, bill)
}

type featureResponse struct {
	Feature types.FeatureName `json:"feature"`
	Enabled bool              `json:"enabled"`
}

// knownFeatures guards the path parameter so a typo cannot masquerade as
// a legitimately disabled feature.
var knownFeatures = map[types.FeatureName]struct{}{
	types.FeatureVisionLab:       {},
	types.FeatureMultiBranch:     {},
	types.FeatureAIRoutines:      {},
	types.FeatureAdvancedReports: {},
}

// CheckFeature handles GET /v1/features/{feature}.
func (h *BillingHandler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	feature := types.FeatureName(chi.URLParam(r, "feature"))
	if _, known := knownFeatures[feature]; !known {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidFeature,
			fmt.Sprintf("unknown feature %q", string(feature)),
			nil,
		))
		return
	}

	enabled, err := h.features.HasFeature(r.Context(), actor.TenantID, feature)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, featureResponse{
		Feature: feature,
		Enabled: enabled,
	})
}
