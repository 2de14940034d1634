package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gymdesk/internal/config"
	"gymdesk/internal/types"
)

// maxAIResponseSize bounds how much of an AI response is read (4 MB).
// Generated routines and analyses are text; anything larger is broken.
const maxAIResponseSize = 4 << 20

// AI request/response payloads. The AI service is a separate deployment;
// these structs define the wire contract with it.

// RoutineRequest asks the AI service to generate a workout routine.
type RoutineRequest struct {
	MemberID    string   `json:"member_id"`
	Goal        string   `json:"goal"`
	DaysPerWeek int      `json:"days_per_week"`
	Equipment   []string `json:"equipment,omitempty"`
}

// NutritionRequest asks for a nutrition analysis of a described meal plan.
type NutritionRequest struct {
	MemberID    string `json:"member_id"`
	Description string `json:"description"`
}

// VisionRequest submits an image (base64 or URL reference) for form analysis.
type VisionRequest struct {
	MemberID string `json:"member_id"`
	ImageURL string `json:"image_url"`
	Exercise string `json:"exercise,omitempty"`
}

// ChatRequest carries one turn of the member-facing AI chat.
type ChatRequest struct {
	MemberID string `json:"member_id"`
	Message  string `json:"message"`
}

// AIResult is the uniform response shape from the AI service: a content
// payload plus the model identifier that produced it.
type AIResult struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// AIClient calls the external AI service. One breaker guards all four
// operations: if the AI service is down it is down for everything.
type AIClient struct {
	up       *upstream
	endpoint string
	apiKey   types.SecretString
}

// NewAIClient creates an AIClient from the AI configuration.
func NewAIClient(cfg config.AIConfig, opts ...upstreamOption) *AIClient {
	return &AIClient{
		up:       newUpstream("ai-service", cfg.Timeout, maxAIResponseSize, opts...),
		endpoint: cfg.EndpointURL,
		apiKey:   cfg.APIKey,
	}
}

// GenerateRoutine requests a workout routine from the AI service.
func (c *AIClient) GenerateRoutine(ctx context.Context, req RoutineRequest) (*AIResult, error) {
	return c.post(ctx, "/v1/routines", req)
}

// AnalyzeNutrition requests a nutrition analysis from the AI service.
func (c *AIClient) AnalyzeNutrition(ctx context.Context, req NutritionRequest) (*AIResult, error) {
	return c.post(ctx, "/v1/nutrition", req)
}

// AnalyzeVision requests an exercise-form vision analysis from the AI service.
func (c *AIClient) AnalyzeVision(ctx context.Context, req VisionRequest) (*AIResult, error) {
	return c.post(ctx, "/v1/vision", req)
}

// Chat sends one chat turn to the AI service.
func (c *AIClient) Chat(ctx context.Context, req ChatRequest) (*AIResult, error) {
	return c.post(ctx, "/v1/chat", req)
}

// post sends the payload and decodes the uniform AIResult response.
// Failures surface as AppErrors with the upstream_ai_unavailable code so
// the quota gate's caller can map them to 502 without inspecting transport
// details; only the rate-limit classification passes through unchanged.
func (c *AIClient) post(ctx context.Context, path string, payload any) (*AIResult, error) {
	var header http.Header
	if key := c.apiKey.Unmask(); key != "" {
		header = http.Header{"Authorization": []string{"Bearer " + key}}
	}

	rep, err := c.up.postJSON(ctx, c.endpoint+path, header, payload)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamRateLimited {
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamAI, "AI service unavailable", err)
	}

	if rep.status != http.StatusOK {
		// 4xx from the AI service means we sent something it rejects.
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAI,
			fmt.Sprintf("AI service rejected request with status %d", rep.status),
			nil,
		)
	}

	var result AIResult
	if err := json.Unmarshal(rep.body, &result); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamAI, "malformed AI response", err)
	}
	return &result, nil
}
