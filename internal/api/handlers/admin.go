package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// TenantAdminStore covers the provisioning writes the operator surface
// needs from db.TenantRepository.
type TenantAdminStore interface {
	Create(ctx context.Context, t *types.Tenant) error
	UpdateDiscount(ctx context.Context, id string, percent int) error
}

// AdminHandler serves the platform-operator endpoints: provisioning a gym
// and adjusting its billing discount. Both require a system token; gym
// dashboards never reach these routes.
type AdminHandler struct {
	store    TenantAdminStore
	validate *core.Validator
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store TenantAdminStore, validate *core.Validator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		store:    store,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes mounts the operator endpoints on the v1 router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/gyms", h.CreateGym)
	r.Put("/admin/gyms/{gymID}/discount", h.SetDiscount)
}

type createGymRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	PlanCode string `json:"plan_code" validate:"required,oneof=basico pro elite"`
}

type discountRequest struct {
	Percent int `json:"percent" validate:"min=0,max=100"`
}

// CreateGym handles POST /v1/admin/gyms. New gyms start in the active
// payment state; Stripe linkage happens later through the webhook flow.
func (h *AdminHandler) CreateGym(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSystem(w, r)
	if !ok {
		return
	}

	var req createGymRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := timeNow().UTC()
	tenant := &types.Tenant{
		ID:           newGymID(),
		Name:         req.Name,
		PlanCode:     types.PlanCode(req.PlanCode),
		PaymentState: types.PaymentActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.Create(r.Context(), tenant); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "gym provisioned",
		"tenant_id", tenant.ID,
		"plan", req.PlanCode,
		"operator", actor.ID,
	)
	core.JSON(w, r, http.StatusCreated, tenant)
}

// SetDiscount handles PUT /v1/admin/gyms/{gymID}/discount. The percentage
// applies to the next monthly bill calculation.
func (h *AdminHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSystem(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	gymID := chi.URLParam(r, "gymID")
	if err := h.store.UpdateDiscount(r.Context(), gymID, req.Percent); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "gym discount updated",
		"tenant_id", gymID,
		"percent", req.Percent,
		"operator", actor.ID,
	)
	w.WriteHeader(http.StatusNoContent)
}
