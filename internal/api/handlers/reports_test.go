package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"gymdesk/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// decodeExport gunzips the response body and parses the CSV rows.
func decodeExport(t *testing.T, rr *httptest.ResponseRecorder) [][]string {
	t.Helper()
	gz, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("response body is not gzip: %v", err)
	}
	defer gz.Close()

	rows, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	return rows
}

func TestExportUsage_Success(t *testing.T) {
	usage := &mockUsageReader{
		listFn: func(ctx context.Context, tenantID string, from, to time.Time) ([]types.UsageCounter, error) {
			return []types.UsageCounter{
				{TenantID: tenantID, UserID: "user_a", UsageType: types.UsageAIChat, Day: day("2026-08-01"), Count: 7},
				{TenantID: tenantID, UserID: "user_b", UsageType: types.UsageVisionAnalysis, Day: day("2026-08-02"), Count: 3},
			}, nil
		},
	}
	h := NewReportsHandler(usage, &mockFeatureChecker{}, quietTestLogger())

	req := makeRequest("GET", "/v1/reports/usage?from=2026-08-01&to=2026-08-31", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.ExportUsage(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/gzip" {
		t.Errorf("expected application/gzip, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="usage_2026-08-01_2026-08-31.csv.gz"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	rows := decodeExport(t, rr)
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	wantHeader := []string{"day", "user_id", "usage_type", "count"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header column %d: expected %q, got %q", i, col, rows[0][i])
		}
	}
	if rows[1][0] != "2026-08-01" || rows[1][1] != "user_a" || rows[1][2] != "ai_chat" || rows[1][3] != "7" {
		t.Errorf("unexpected first row %v", rows[1])
	}
	if rows[2][2] != "vision_analysis" || rows[2][3] != "3" {
		t.Errorf("unexpected second row %v", rows[2])
	}
}

func TestExportUsage_EmptyLedger(t *testing.T) {
	h := NewReportsHandler(&mockUsageReader{}, &mockFeatureChecker{}, quietTestLogger())

	req := makeRequest("GET", "/v1/reports/usage", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.ExportUsage(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rows := decodeExport(t, rr)
	if len(rows) != 1 {
		t.Errorf("expected only header row, got %d rows", len(rows))
	}
}

func TestExportUsage_DefaultRange(t *testing.T) {
	var gotFrom, gotTo time.Time
	usage := &mockUsageReader{
		listFn: func(ctx context.Context, tenantID string, from, to time.Time) ([]types.UsageCounter, error) {
			gotFrom, gotTo = from, to
			return nil, nil
		},
	}
	h := NewReportsHandler(usage, &mockFeatureChecker{}, quietTestLogger())

	originalNow := timeNow
	timeNow = func() time.Time { return time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC) }
	defer func() { timeNow = originalNow }()

	req := makeRequest("GET", "/v1/reports/usage", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.ExportUsage(rr, req)

	if !gotTo.Equal(day("2026-08-31")) {
		t.Errorf("expected default to 2026-08-31, got %v", gotTo)
	}
	if !gotFrom.Equal(day("2026-08-01")) {
		t.Errorf("expected default from 2026-08-01, got %v", gotFrom)
	}
}

func TestExportUsage_FeatureGated(t *testing.T) {
	features := &mockFeatureChecker{
		hasFn: func(ctx context.Context, tenantID string, feature types.FeatureName) (bool, error) {
			if feature != types.FeatureAdvancedReports {
				t.Errorf("expected advanced_reports check, got %q", feature)
			}
			return false, nil
		},
	}
	h := NewReportsHandler(&mockUsageReader{}, features, quietTestLogger())

	req := makeRequest("GET", "/v1/reports/usage", nil, contextWithTenant("gym_1"))
	rr := httptest.NewRecorder()
	h.ExportUsage(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, types.ErrCodeFeatureNotAvailable)
}

func TestExportUsage_InvalidRange(t *testing.T) {
	h := NewReportsHandler(&mockUsageReader{}, &mockFeatureChecker{}, quietTestLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"malformed from", "?from=08-01-2026"},
		{"malformed to", "?to=yesterday"},
		{"inverted range", "?from=2026-08-31&to=2026-08-01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := makeRequest("GET", "/v1/reports/usage"+tc.query, nil, contextWithTenant("gym_1"))
			rr := httptest.NewRecorder()
			h.ExportUsage(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}
