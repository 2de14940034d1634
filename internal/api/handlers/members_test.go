package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"gymdesk/internal/types"
)

func newTestMembersHandler(
	store *mockMemberStore,
	checker *mockCapacityChecker,
	alerts *mockAlertNotifier,
	metrics *mockRecorder,
) *MembersHandler {
	return NewMembersHandler(store, checker, alerts, metrics, testValidator(), quietTestLogger())
}

func TestCreateMember_Success(t *testing.T) {
	store := &mockMemberStore{}
	h := newTestMembersHandler(store, &mockCapacityChecker{}, &mockAlertNotifier{}, &mockRecorder{})

	body := createMemberRequest{FullName: "Ana Silva"}
	req := makeRequest("POST", "/v1/members", body, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.CreateMember(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data types.Member `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)

	if !strings.HasPrefix(resp.Data.ID, "mem_") {
		t.Errorf("expected mem_ prefixed ID, got %q", resp.Data.ID)
	}
	if resp.Data.TenantID != "gym_1" {
		t.Errorf("expected tenant gym_1, got %q", resp.Data.TenantID)
	}
	if resp.Data.Role != types.RoleMember {
		t.Errorf("expected default role member, got %q", resp.Data.Role)
	}
	if resp.Data.State != types.MemberActive {
		t.Errorf("expected state active, got %q", resp.Data.State)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(store.created))
	}
}

func TestCreateMember_LimitReached(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return &types.CapacityReport{
				CanAddMember:   false,
				CanAddBranch:   true,
				CurrentMembers: 50,
				MemberLimit:    50,
				Reason:         "member limit reached for current plan",
			}, nil
		},
	}
	store := &mockMemberStore{}
	alerts := &mockAlertNotifier{}
	metrics := &mockRecorder{}
	h := newTestMembersHandler(store, checker, alerts, metrics)

	body := createMemberRequest{FullName: "Ana Silva"}
	req := makeRequest("POST", "/v1/members", body, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.CreateMember(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodeLimitMembers)

	if len(store.created) != 0 {
		t.Error("expected no member insert after refusal")
	}
	if len(alerts.limitCalls) != 1 || alerts.limitCalls[0] != types.AlertLimitReached {
		t.Errorf("expected one limit_reached alert, got %v", alerts.limitCalls)
	}
	if len(metrics.limitCalls) != 1 || metrics.limitCalls[0] != "member" {
		t.Errorf("expected one member refusal metric, got %v", metrics.limitCalls)
	}
}

func TestCreateMember_UnpaidTenant(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return &types.CapacityReport{
				CanAddMember: false,
				CanAddBranch: false,
				Reason:       "subscription suspended for nonpayment",
			}, nil
		},
	}
	alerts := &mockAlertNotifier{}
	h := newTestMembersHandler(&mockMemberStore{}, checker, alerts, &mockRecorder{})

	body := createMemberRequest{FullName: "Ana Silva"}
	req := makeRequest("POST", "/v1/members", body, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.CreateMember(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodePaymentSuspended)

	if len(alerts.limitCalls) != 1 || alerts.limitCalls[0] != types.AlertPaymentSuspended {
		t.Errorf("expected payment_suspended alert, got %v", alerts.limitCalls)
	}
}

func TestCreateMember_CoachSkipsLimitCheck(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return &types.CapacityReport{CanAddMember: false, Reason: "member limit reached for current plan"}, nil
		},
	}
	store := &mockMemberStore{}
	h := newTestMembersHandler(store, checker, &mockAlertNotifier{}, &mockRecorder{})

	body := createMemberRequest{FullName: "Carlos Gomez", Role: "coach"}
	req := makeRequest("POST", "/v1/members", body, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.CreateMember(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for coach, got %d: %s", rr.Code, rr.Body.String())
	}
	if checker.calls != 0 {
		t.Errorf("expected no capacity check for coach, got %d calls", checker.calls)
	}
	if len(store.created) != 1 || store.created[0].Role != types.RoleCoach {
		t.Error("expected coach row to be created")
	}
}

func TestCreateMember_ValidationFailure(t *testing.T) {
	store := &mockMemberStore{}
	h := newTestMembersHandler(store, &mockCapacityChecker{}, &mockAlertNotifier{}, &mockRecorder{})

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing full_name", createMemberRequest{}},
		{"invalid role", createMemberRequest{FullName: "Ana", Role: "superadmin"}},
		{"unknown field", map[string]string{"full_name": "Ana", "nickname": "A"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := makeRequest("POST", "/v1/members", tc.body, contextWithTenant("gym_1"))
			rr := httptest.NewRecorder()
			h.CreateMember(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
	if len(store.created) != 0 {
		t.Error("expected no inserts for invalid requests")
	}
}

func TestCreateMember_AlertFailureDoesNotBlock(t *testing.T) {
	checker := &mockCapacityChecker{
		checkFn: func(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
			return &types.CapacityReport{CanAddMember: false, Reason: "member limit reached for current plan"}, nil
		},
	}
	alerts := &mockAlertNotifier{err: types.NewAppError(types.ErrCodeUpstreamQueue, "queue down", nil)}
	h := newTestMembersHandler(&mockMemberStore{}, checker, alerts, &mockRecorder{})

	body := createMemberRequest{FullName: "Ana Silva"}
	req := makeRequest("POST", "/v1/members", body, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.CreateMember(rr, req)

	// The refusal response is still the limit error, not the queue error.
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodeLimitMembers)
}

func TestDeleteMember_Success(t *testing.T) {
	var gotTenant, gotMember string
	store := &mockMemberStore{
		deleteFn: func(ctx context.Context, tenantID, memberID string) error {
			gotTenant, gotMember = tenantID, memberID
			return nil
		},
	}
	h := newTestMembersHandler(store, &mockCapacityChecker{}, &mockAlertNotifier{}, &mockRecorder{})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := makeRequest("DELETE", "/members/mem_9", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotTenant != "gym_1" || gotMember != "mem_9" {
		t.Errorf("expected delete of gym_1/mem_9, got %s/%s", gotTenant, gotMember)
	}
}

func TestDeleteMember_NotFound(t *testing.T) {
	store := &mockMemberStore{
		deleteFn: func(ctx context.Context, tenantID, memberID string) error {
			return types.NewAppError(types.ErrCodeNotFoundMember, "member not found", nil)
		},
	}
	h := newTestMembersHandler(store, &mockCapacityChecker{}, &mockAlertNotifier{}, &mockRecorder{})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := makeRequest("DELETE", "/members/mem_missing", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodeNotFoundMember)
}
