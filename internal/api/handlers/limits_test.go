package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymdesk/internal/types"
)

func TestGetLimits_Success(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			if tenantID != "gym_1" {
				t.Errorf("expected tenant gym_1, got %q", tenantID)
			}
			return &types.CapacityReport{
				CanAddMember:    true,
				CanAddBranch:    false,
				CurrentMembers:  42,
				CurrentBranches: 1,
				MemberLimit:     50,
				BranchLimit:     1,
				Reason:          "branch limit reached for current plan",
			}, nil
		},
	}
	h := NewLimitsHandler(checker, quietTestLogger())

	req := makeRequest("GET", "/v1/limits", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.GetLimits(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data limitsResponse `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)

	if !resp.Data.CanAddMember {
		t.Error("expected can_add_member true")
	}
	if resp.Data.CanAddBranch {
		t.Error("expected can_add_branch false")
	}
	if resp.Data.CurrentMembers != 42 {
		t.Errorf("expected 42 current members, got %d", resp.Data.CurrentMembers)
	}
	if resp.Data.MemberLimitDisplay != "50" {
		t.Errorf("expected member limit display \"50\", got %q", resp.Data.MemberLimitDisplay)
	}
	if resp.Data.Reason != "branch limit reached for current plan" {
		t.Errorf("unexpected reason %q", resp.Data.Reason)
	}
}

func TestGetLimits_UnlimitedPlanDisplays(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return &types.CapacityReport{
				CanAddMember: true,
				CanAddBranch: true,
				MemberLimit:  types.UnlimitedSentinel,
				BranchLimit:  types.UnlimitedSentinel,
			}, nil
		},
	}
	h := NewLimitsHandler(checker, quietTestLogger())

	req := makeRequest("GET", "/v1/limits", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.GetLimits(rr, req)

	var resp struct {
		Data limitsResponse `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)

	if resp.Data.MemberLimitDisplay != "unlimited" {
		t.Errorf("expected \"unlimited\", got %q", resp.Data.MemberLimitDisplay)
	}
	if resp.Data.BranchLimitDisplay != "unlimited" {
		t.Errorf("expected \"unlimited\", got %q", resp.Data.BranchLimitDisplay)
	}
}

func TestGetLimits_NoTenantContext(t *testing.T) {
	h := NewLimitsHandler(&mockCapacityChecker{}, quietTestLogger())

	req := makeRequest("GET", "/v1/limits", nil, context.Background())
	rr := httptest.NewRecorder()
	h.GetLimits(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetLimits_CheckerError(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "tenant not found", nil)
		},
	}
	h := NewLimitsHandler(checker, quietTestLogger())

	req := makeRequest("GET", "/v1/limits", nil, contextWithTenant("gym_missing"))
	rr := httptest.NewRecorder()
	h.GetLimits(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodeNotFoundTenant)
}
