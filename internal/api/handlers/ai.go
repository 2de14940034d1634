package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/core"
	"gymdesk/internal/external"
	"gymdesk/internal/types"
)

// QuotaConsumer atomically takes one unit of a tenant's daily AI quota.
// billing.QuotaGate is the production implementation.
type QuotaConsumer interface {
	Consume(ctx context.Context, tenantID, userID string, usageType types.UsageType) (*types.QuotaDecision, error)
}

// AIService is the subset of external.AIClient the handler needs.
type AIService interface {
	GenerateRoutine(ctx context.Context, req external.RoutineRequest) (*external.AIResult, error)
	AnalyzeNutrition(ctx context.Context, req external.NutritionRequest) (*external.AIResult, error)
	AnalyzeVision(ctx context.Context, req external.VisionRequest) (*external.AIResult, error)
	Chat(ctx context.Context, req external.ChatRequest) (*external.AIResult, error)
}

// AIHandler serves the metered AI endpoints. Every request consumes quota
// BEFORE the upstream call: a unit spent on a failed upstream call stays
// spent, which keeps the ledger monotonic and the gate race-free.
type AIHandler struct {
	quota    QuotaConsumer
	features FeatureChecker
	ai       AIService
	alerts   AlertNotifier
	metrics  DecisionRecorder
	validate *core.Validator
	logger   *slog.Logger
}

// NewAIHandler creates an AIHandler. alerts and metrics may be nil.
func NewAIHandler(
	quota QuotaConsumer,
	features FeatureChecker,
	ai AIService,
	alerts AlertNotifier,
	metrics DecisionRecorder,
	validate *core.Validator,
	logger *slog.Logger,
) *AIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIHandler{
		quota:    quota,
		features: features,
		ai:       ai,
		alerts:   alerts,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes mounts the AI endpoints on the v1 router.
func (h *AIHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ai/routines", h.GenerateRoutine)
	r.Post("/ai/nutrition", h.AnalyzeNutrition)
	r.Post("/ai/vision", h.AnalyzeVision)
	r.Post("/ai/chat", h.Chat)
}

type routineRequest struct {
	MemberID    string   `json:"member_id" validate:"required"`
	Goal        string   `json:"goal" validate:"required,max=500"`
	DaysPerWeek int      `json:"days_per_week" validate:"required,min=1,max=7"`
	Equipment   []string `json:"equipment" validate:"omitempty,max=50,dive,max=100"`
}

type nutritionRequest struct {
	MemberID    string `json:"member_id" validate:"required"`
	Description string `json:"description" validate:"required,max=2000"`
}

type visionRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	ImageURL string `json:"image_url" validate:"required,url"`
	Exercise string `json:"exercise" validate:"omitempty,max=200"`
}

type chatRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	Message  string `json:"message" validate:"required,max=4000"`
}

// aiResponse carries the AI output plus the caller's quota position after
// this request.
type aiResponse struct {
	Content string     `json:"content"`
	Model   string     `json:"model,omitempty"`
	Usage   quotaUsage `json:"usage"`
}

type quotaUsage struct {
	Used      int    `json:"used"`
	Allotment string `json:"allotment"`
}

// GenerateRoutine handles POST /v1/ai/routines.
func (h *AIHandler) GenerateRoutine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req routineRequest
	if !h.decode(w, r, &req) {
		return
	}

	decision, ok := h.consume(w, r, actor, types.UsageRoutineGeneration)
	if !ok {
		return
	}

	result, err := h.ai.GenerateRoutine(r.Context(), external.RoutineRequest{
		MemberID:    req.MemberID,
		Goal:        req.Goal,
		DaysPerWeek: req.DaysPerWeek,
		Equipment:   req.Equipment,
	})
	h.respond(w, r, decision, result, err)
}

// AnalyzeNutrition handles POST /v1/ai/nutrition.
func (h *AIHandler) AnalyzeNutrition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req nutritionRequest
	if !h.decode(w, r, &req) {
		return
	}

	decision, ok := h.consume(w, r, actor, types.UsageNutritionAnalysis)
	if !ok {
		return
	}

	result, err := h.ai.AnalyzeNutrition(r.Context(), external.NutritionRequest{
		MemberID:    req.MemberID,
		Description: req.Description,
	})
	h.respond(w, r, decision, result, err)
}

// AnalyzeVision handles POST /v1/ai/vision. Vision is double-gated: the
// plan must carry the vision_lab feature AND have vision quota remaining.
func (h *AIHandler) AnalyzeVision(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req visionRequest
	if !h.decode(w, r, &req) {
		return
	}

	enabled, err := h.features.HasFeature(r.Context(), actor.TenantID, types.FeatureVisionLab)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !enabled {
		if h.metrics != nil {
			h.metrics.RecordQuotaDecision(types.UsageVisionAnalysis, quotaResultNotEntitled)
		}
		core.Error(w, r, types.NewAppError(
			types.ErrCodeFeatureNotAvailable,
			"current plan does not include the vision lab",
			nil,
		))
		return
	}

	decision, ok := h.consume(w, r, actor, types.UsageVisionAnalysis)
	if !ok {
		return
	}

	result, err := h.ai.AnalyzeVision(r.Context(), external.VisionRequest{
		MemberID: req.MemberID,
		ImageURL: req.ImageURL,
		Exercise: req.Exercise,
	})
	h.respond(w, r, decision, result, err)
}

// Chat handles POST /v1/ai/chat.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	decision, ok := h.consume(w, r, actor, types.UsageAIChat)
	if !ok {
		return
	}

	result, err := h.ai.Chat(r.Context(), external.ChatRequest{
		MemberID: req.MemberID,
		Message:  req.Message,
	})
	h.respond(w, r, decision, result, err)
}

// decode reads and validates the request body, writing the error response
// on failure. Returns true when the body is usable.
func (h *AIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validate.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// consume runs the quota gate for the request's usage type and writes the
// refusal response when the unit is not granted. Returns the decision and
// true when the caller may proceed.
func (h *AIHandler) consume(w http.ResponseWriter, r *http.Request, actor types.Actor, usageType types.UsageType) (*types.QuotaDecision, bool) {
	decision, err := h.quota.Consume(r.Context(), actor.TenantID, actor.ID, usageType)
	if err != nil {
		core.Error(w, r, err)
		return nil, false
	}

	if decision.Allowed {
		if h.metrics != nil {
			h.metrics.RecordQuotaDecision(usageType, quotaResultAllowed)
		}
		return decision, true
	}

	code := types.ErrCodeQuotaExhausted
	result := quotaResultExhausted
	if decision.Allotment == 0 {
		code = types.ErrCodeQuotaNotEntitled
		result = quotaResultNotEntitled
	}
	if h.metrics != nil {
		h.metrics.RecordQuotaDecision(usageType, result)
	}
	if code == types.ErrCodeQuotaExhausted && h.alerts != nil {
		if alertErr := h.alerts.QuotaExhausted(r.Context(), actor.TenantID, usageType, decision.Message); alertErr != nil {
			h.logger.WarnContext(r.Context(), "quota exhaustion alert not delivered",
				"tenant_id", actor.TenantID,
				"usage_type", string(usageType),
				"error", alertErr,
			)
		}
	}

	core.Error(w, r, types.NewAppError(code, decision.Message, nil))
	return nil, false
}

// respond writes the AI result or maps the upstream failure. The quota
// unit consumed for a failed upstream call is not refunded.
func (h *AIHandler) respond(w http.ResponseWriter, r *http.Request, decision *types.QuotaDecision, result *external.AIResult, err error) {
	if err != nil {
		h.logger.ErrorContext(r.Context(), "AI service call failed",
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, aiResponse{
		Content: result.Content,
		Model:   result.Model,
		Usage: quotaUsage{
			Used:      decision.Used,
			Allotment: types.LimitDisplay(decision.Allotment),
		},
	})
}
