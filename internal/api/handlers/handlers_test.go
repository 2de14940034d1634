package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"gymdesk/internal/core"
	"gymdesk/internal/external"
	"gymdesk/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockCapacityChecker implements CapacityChecker for testing.
type mockCapacityChecker struct {
	checkFn func(ctx context.Context, tenantID string) (*types.CapacityReport, error)
	calls   int
}

func (m *mockCapacityChecker) CheckTenantLimits(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
	m.calls++
	if m.checkFn != nil {
		return m.checkFn(ctx, tenantID)
	}
	return &types.CapacityReport{
		CanAddMember:    true,
		CanAddBranch:    true,
		CurrentMembers:  10,
		CurrentBranches: 1,
		MemberLimit:     50,
		BranchLimit:     3,
	}, nil
}

// mockFeatureChecker implements FeatureChecker for testing.
type mockFeatureChecker struct {
	hasFn func(ctx context.Context, tenantID string, feature types.FeatureName) (bool, error)
}

func (m *mockFeatureChecker) HasFeature(ctx context.Context, tenantID string, feature types.FeatureName) (bool, error) {
	if m.hasFn != nil {
		return m.hasFn(ctx, tenantID, feature)
	}
	return true, nil
}

// mockAlertNotifier implements AlertNotifier for testing.
type mockAlertNotifier struct {
	limitCalls []types.AlertKind
	quotaCalls []types.UsageType
	err        error
}

func (m *mockAlertNotifier) LimitRefused(ctx context.Context, tenantID string, kind types.AlertKind, detail string) error {
	m.limitCalls = append(m.limitCalls, kind)
	return m.err
}

func (m *mockAlertNotifier) QuotaExhausted(ctx context.Context, tenantID string, usageType types.UsageType, detail string) error {
	m.quotaCalls = append(m.quotaCalls, usageType)
	return m.err
}

// mockRecorder implements DecisionRecorder for testing.
type mockRecorder struct {
	quotaResults []string
	limitCalls   []string
}

func (m *mockRecorder) RecordQuotaDecision(usageType types.UsageType, result string) {
	m.quotaResults = append(m.quotaResults, result)
}

func (m *mockRecorder) RecordLimitRefusal(resource string) {
	m.limitCalls = append(m.limitCalls, resource)
}

// mockMemberStore implements MemberStore for testing.
type mockMemberStore struct {
	createFn func(ctx context.Context, member *types.Member) error
	deleteFn func(ctx context.Context, tenantID, memberID string) error
	created  []*types.Member
}

func (m *mockMemberStore) Create(ctx context.Context, member *types.Member) error {
	m.created = append(m.created, member)
	if m.createFn != nil {
		return m.createFn(ctx, member)
	}
	return nil
}

func (m *mockMemberStore) SoftDelete(ctx context.Context, tenantID, memberID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tenantID, memberID)
	}
	return nil
}

// mockBranchStore implements BranchStore for testing.
type mockBranchStore struct {
	createFn func(ctx context.Context, branch *types.Branch) error
	deleteFn func(ctx context.Context, tenantID, branchID string) error
	created  []*types.Branch
}

func (m *mockBranchStore) Create(ctx context.Context, branch *types.Branch) error {
	m.created = append(m.created, branch)
	if m.createFn != nil {
		return m.createFn(ctx, branch)
	}
	return nil
}

func (m *mockBranchStore) SoftDelete(ctx context.Context, tenantID, branchID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tenantID, branchID)
	}
	return nil
}

// mockQuotaConsumer implements QuotaConsumer for testing.
type mockQuotaConsumer struct {
	consumeFn func(ctx context.Context, tenantID, userID string, usageType types.UsageType) (*types.QuotaDecision, error)
	calls     []types.UsageType
}

func (m *mockQuotaConsumer) Consume(ctx context.Context, tenantID, userID string, usageType types.UsageType) (*types.QuotaDecision, error) {
	m.calls = append(m.calls, usageType)
	if m.consumeFn != nil {
		return m.consumeFn(ctx, tenantID, userID, usageType)
	}
	return &types.QuotaDecision{Allowed: true, Used: 1, Allotment: 10}, nil
}

// mockAIService implements AIService for testing.
type mockAIService struct {
	routineFn   func(ctx context.Context, req external.RoutineRequest) (*external.AIResult, error)
	nutritionFn func(ctx context.Context, req external.NutritionRequest) (*external.AIResult, error)
	visionFn    func(ctx context.Context, req external.VisionRequest) (*external.AIResult, error)
	chatFn      func(ctx context.Context, req external.ChatRequest) (*external.AIResult, error)
	calls       int
}

func (m *mockAIService) GenerateRoutine(ctx context.Context, req external.RoutineRequest) (*external.AIResult, error) {
	m.calls++
	if m.routineFn != nil {
		return m.routineFn(ctx, req)
	}
	return &external.AIResult{Content: "routine plan", Model: "test-model"}, nil
}

func (m *mockAIService) AnalyzeNutrition(ctx context.Context, req external.NutritionRequest) (*external.AIResult, error) {
	m.calls++
	if m.nutritionFn != nil {
		return m.nutritionFn(ctx, req)
	}
	return &external.AIResult{Content: "nutrition analysis", Model: "test-model"}, nil
}

func (m *mockAIService) AnalyzeVision(ctx context.Context, req external.VisionRequest) (*external.AIResult, error) {
	m.calls++
	if m.visionFn != nil {
		return m.visionFn(ctx, req)
	}
	return &external.AIResult{Content: "form analysis", Model: "test-model"}, nil
}

func (m *mockAIService) Chat(ctx context.Context, req external.ChatRequest) (*external.AIResult, error) {
	m.calls++
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &external.AIResult{Content: "chat reply", Model: "test-model"}, nil
}

// mockBillCalculator implements BillCalculator for testing.
type mockBillCalculator struct {
	calcFn func(ctx context.Context, tenantID string) (*types.MonthlyBill, error)
}

func (m *mockBillCalculator) CalculateMonthlyBill(ctx context.Context, tenantID string) (*types.MonthlyBill, error) {
	if m.calcFn != nil {
		return m.calcFn(ctx, tenantID)
	}
	return &types.MonthlyBill{
		BasePriceCents: 25000,
		TotalCents:     25000,
	}, nil
}

// mockUsageReader implements UsageReader for testing.
type mockUsageReader struct {
	listFn func(ctx context.Context, tenantID string, from, to time.Time) ([]types.UsageCounter, error)
}

func (m *mockUsageReader) ListRange(ctx context.Context, tenantID string, from, to time.Time) ([]types.UsageCounter, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID, from, to)
	}
	return nil, nil
}

// mockBillingStateStore implements BillingStateStore for testing.
type mockBillingStateStore struct {
	getFn         func(ctx context.Context, customerID string) (*types.Tenant, error)
	updateStateFn func(ctx context.Context, id string, state types.PaymentState) error
	updatePlanFn  func(ctx context.Context, id string, plan types.PlanCode) error
	stateCalls    []types.PaymentState
	planCalls     []types.PlanCode
}

func (m *mockBillingStateStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Tenant, error) {
	if m.getFn != nil {
		return m.getFn(ctx, customerID)
	}
	return &types.Tenant{
		ID:               "gym_1",
		Name:             "Test Gym",
		PlanCode:         types.PlanPro,
		PaymentState:     types.PaymentActive,
		StripeCustomerID: customerID,
	}, nil
}

func (m *mockBillingStateStore) UpdatePaymentState(ctx context.Context, id string, state types.PaymentState) error {
	m.stateCalls = append(m.stateCalls, state)
	if m.updateStateFn != nil {
		return m.updateStateFn(ctx, id, state)
	}
	return nil
}

func (m *mockBillingStateStore) UpdatePlan(ctx context.Context, id string, plan types.PlanCode) error {
	m.planCalls = append(m.planCalls, plan)
	if m.updatePlanFn != nil {
		return m.updatePlanFn(ctx, id, plan)
	}
	return nil
}

// Compile-time interface assertions for mocks.
var (
	_ CapacityChecker   = (*mockCapacityChecker)(nil)
	_ FeatureChecker    = (*mockFeatureChecker)(nil)
	_ AlertNotifier     = (*mockAlertNotifier)(nil)
	_ DecisionRecorder  = (*mockRecorder)(nil)
	_ MemberStore       = (*mockMemberStore)(nil)
	_ BranchStore       = (*mockBranchStore)(nil)
	_ QuotaConsumer     = (*mockQuotaConsumer)(nil)
	_ AIService         = (*mockAIService)(nil)
	_ BillCalculator    = (*mockBillCalculator)(nil)
	_ UsageReader       = (*mockUsageReader)(nil)
	_ BillingStateStore = (*mockBillingStateStore)(nil)
)

// =============================================================================
// Test Helpers
// =============================================================================

// quietTestLogger returns a logger that discards everything below the
// threshold no test emits at.
func quietTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
}

func testValidator() *core.Validator {
	return core.NewValidator(quietTestLogger())
}

// contextWithTenant creates a context carrying an authenticated actor for
// the given tenant.
func contextWithTenant(tenantID string) context.Context {
	ctx := types.WithRequestID(context.Background(), "req_test_123")
	return types.WithActor(ctx, types.Actor{
		ID:       "user_test_1",
		Type:     types.ActorTypeUser,
		TenantID: tenantID,
		Source:   "dashboard",
	})
}

// makeRequest creates an HTTP request with the given method, path, JSON
// body, and context.
func makeRequest(method, path string, body interface{}, ctx context.Context) *http.Request {
	var reqBody *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	return req
}

// parseJSONResponse decodes the response body into the given target.
func parseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response body: %v\nbody: %s", err, rr.Body.String())
	}
}

// assertErrorCode parses the error envelope and checks the error code.
func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want types.ErrorCode) {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	parseJSONResponse(t, rr, &resp)
	if resp.Error.Code != string(want) {
		t.Errorf("expected error code %q, got %q (body: %s)", want, resp.Error.Code, rr.Body.String())
	}
}
