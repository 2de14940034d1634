package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// defaultReportDays is the export window when no range is given.
const defaultReportDays = 30

// UsageReader reads quota ledger rows for the report export.
// db.QuotaRepository is the production implementation.
type UsageReader interface {
	ListRange(ctx context.Context, tenantID string, from, to time.Time) ([]types.UsageCounter, error)
}

// ReportsHandler serves the gzip-compressed CSV usage export. The export
// is gated behind the advanced_reports feature.
type ReportsHandler struct {
	usage    UsageReader
	features FeatureChecker
	logger   *slog.Logger
}

// NewReportsHandler creates a ReportsHandler.
func NewReportsHandler(usage UsageReader, features FeatureChecker, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{
		usage:    usage,
		features: features,
		logger:   logger,
	}
}

// RegisterRoutes mounts the report endpoints on the v1 router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/usage", h.ExportUsage)
}

// ExportUsage handles GET /v1/reports/usage.
//
// Query parameters "from" and "to" take YYYY-MM-DD dates; the default
// window is the last 30 days. The response body is a gzip stream so the
// Content-Encoding header is NOT set; clients receive a .csv.gz file.
func (h *ReportsHandler) ExportUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireTenant(w, r)
	if !ok {
		return
	}

	enabled, err := h.features.HasFeature(r.Context(), actor.TenantID, types.FeatureAdvancedReports)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !enabled {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeFeatureNotAvailable,
			"current plan does not include advanced reports",
			nil,
		))
		return
	}

	from, to, err := reportRange(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	counters, err := h.usage.ListRange(r.Context(), actor.TenantID, from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "usage export query failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	filename := fmt.Sprintf("usage_%s_%s.csv.gz",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	gz, _ := gzip.NewWriterLevel(w, gzip.BestSpeed)
	cw := csv.NewWriter(gz)

	if err := writeUsageCSV(cw, counters); err != nil {
		// Headers are already out; the truncated body is all we can signal.
		h.logger.ErrorContext(r.Context(), "usage export write failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "usage export flush failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
		return
	}
	if err := gz.Close(); err != nil {
		h.logger.ErrorContext(r.Context(), "usage export gzip close failed",
			"tenant_id", actor.TenantID,
			"error", err,
		)
	}
}

// writeUsageCSV writes the header row and one row per ledger entry.
func writeUsageCSV(cw *csv.Writer, counters []types.UsageCounter) error {
	if err := cw.Write([]string{"day", "user_id", "usage_type", "count"}); err != nil {
		return err
	}
	for _, c := range counters {
		row := []string{
			c.Day.Format("2006-01-02"),
			c.UserID,
			string(c.UsageType),
			strconv.Itoa(c.Count),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// reportRange parses the export window from the query string.
func reportRange(r *http.Request) (time.Time, time.Time, error) {
	now := timeNow().UTC()
	from := types.DayOf(now.AddDate(0, 0, -defaultReportDays))
	to := types.DayOf(now)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = parseReportDate("from", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = parseReportDate("to", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidBody,
			`"to" date precedes "from" date`,
			nil,
		)
	}
	return from, to, nil
}

func parseReportDate(param, raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidBody,
			fmt.Sprintf("invalid %q date, expected YYYY-MM-DD", param),
			err,
		)
	}
	return types.DayOf(t), nil
}
