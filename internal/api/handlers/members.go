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

// MemberStore is the subset of db.MemberRepository the handler needs.
type MemberStore interface {
	Create(ctx context.Context, m *types.Member) error
	SoftDelete(ctx context.Context, tenantID, memberID string) error
}

// MembersHandler creates and removes gym members. Creation re-runs the
// plan limit check at write time; the advisory /limits report is never
// trusted as authorization.
type MembersHandler struct {
	store    MemberStore
	checker  CapacityChecker
	alerts   AlertNotifier
	metrics  DecisionRecorder
	validate *core.Validator
	logger   *slog.Logger
}

// NewMembersHandler creates a MembersHandler. alerts and metrics may be
// nil; both are advisory.
func NewMembersHandler(
	store MemberStore,
	checker CapacityChecker,
	alerts AlertNotifier,
	metrics DecisionRecorder,
	validate *core.Validator,
	logger *slog.Logger,
) *MembersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembersHandler{
		store:    store,
		checker:  checker,
		alerts:   alerts,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes mounts the member endpoints on the v1 router.
func (h *MembersHandler) RegisterRoutes(r chi.Router) {
	r.Post("/members", h.CreateMember)
	r.Delete("/members/{memberID}", h.DeleteMember)
}

type createMemberRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=member coach admin"`
}

// CreateMember handles POST /v1/members.
//
// The flow is check-then-insert: the capacity check and the insert are not
// one transaction, so a concurrent burst can land a tenant slightly over
// the limit. That overshoot is tolerated and settles through billing
// overage; the quota ledger is the only place that needs hard atomicity.
func (h *MembersHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req createMemberRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	role := types.MemberRole(req.Role)
	if role == "" {
		role = types.RoleMember
	}

	// Coaches and admins do not count against the member limit, so only
	// regular members go through the capacity gate.
	if role == types.RoleMember {
		if refused := h.enforceMemberLimit(w, r, actor.TenantID); refused {
			return
		}
	}

	member := &types.Member{
		ID:       newMemberID(),
		TenantID: actor.TenantID,
		FullName: req.FullName,
		Role:     role,
		State:    types.MemberActive,
	}
	if err := h.store.Create(r.Context(), member); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "member created",
		"tenant_id", actor.TenantID,
		"member_id", member.ID,
		"role", string(role),
	)
	core.JSON(w, r, http.StatusCreated, member)
}

// enforceMemberLimit runs the capacity check and writes the refusal
// response when the tenant cannot add a member. Returns true when the
// request was refused.
func (h *MembersHandler) enforceMemberLimit(w http.ResponseWriter, r *http.Request, tenantID string) bool {
	report, err := h.checker.CheckTenantLimits(r.Context(), tenantID)
	if err != nil {
		core.Error(w, r, err)
		return true
	}
	if report.CanAddMember {
		return false
	}

	if h.metrics != nil {
		h.metrics.RecordLimitRefusal("member")
	}

	code := types.ErrCodeLimitMembers
	kind := types.AlertLimitReached
	if billing.NonpaymentRefusal(report) {
		code = types.ErrCodePaymentSuspended
		kind = types.AlertPaymentSuspended
	}
	h.notifyRefusal(r.Context(), tenantID, kind, report.Reason)

	core.Error(w, r, types.NewAppError(code, report.Reason, nil))
	return true
}

func (h *MembersHandler) notifyRefusal(ctx context.Context, tenantID string, kind types.AlertKind, detail string) {
	if h.alerts == nil {
		return
	}
	if err := h.alerts.LimitRefused(ctx, tenantID, kind, detail); err != nil {
		h.logger.WarnContext(ctx, "limit refusal alert not delivered",
			"tenant_id", tenantID,
			"error", err,
		)
	}
}

// DeleteMember handles DELETE /v1/members/{memberID}. Members are
// soft-deleted and immediately stop counting against the plan limit.
func (h *MembersHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	memberID := chi.URLParam(r, "memberID")
	if err := h.store.SoftDelete(r.Context(), actor.TenantID, memberID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "member removed",
		"tenant_id", actor.TenantID,
		"member_id", memberID,
	)
	w.WriteHeader(http.StatusNoContent)
}
