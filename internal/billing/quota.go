package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/types"
)

// QuotaLedger is the storage contract for the per-day usage counters. The
// increment must be a single atomic server-side operation; see
// db.QuotaRepository for the conditional upsert that implements it.
type QuotaLedger interface {
	// IncrementIfBelow consumes one unit for the key while the counter is
	// below allotment. Returns the post-increment count and whether the
	// increment happened.
	IncrementIfBelow(
		ctx context.Context,
		tenantID, userID string,
		usageType types.UsageType,
		day time.Time,
		allotment int,
	) (int, bool, error)
}

// User-visible quota messages. Backend failures get a deliberately generic
// message; capacity exhaustion and missing entitlement are distinguishable
// by the caller but share the allowed=false shape.
const (
	msgQuotaExhausted = "daily quota exhausted for this operation"
	msgNotEntitled    = "current plan does not include this operation"
	msgQuotaServerErr = "server error processing quota"
)

// QuotaGate atomically consumes metered AI usage per tenant, user, usage
// type, and UTC day. Unlike the limit checker it must not tolerate the
// read-then-write race: every allowed=true response corresponds to exactly
// one consumed unit, so calls are intentionally not idempotent.
type QuotaGate struct {
	tenants TenantLookup
	catalog Catalog
	ledger  QuotaLedger
	logger  *slog.Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewQuotaGate creates a QuotaGate over the given tenant lookup, plan
// catalog, and ledger.
func NewQuotaGate(tenants TenantLookup, catalog Catalog, ledger QuotaLedger, logger *slog.Logger) *QuotaGate {
	return &QuotaGate{
		tenants: tenants,
		catalog: catalog,
		ledger:  ledger,
		logger:  logger,
		now:     time.Now,
	}
}

// Consume attempts to take one unit of today's quota for the given
// tenant, user, and usage type.
//
// The decision resolves as:
//   - allowed=true: one unit was consumed; Used carries the new count.
//   - allowed=false, nil error: the allotment is exhausted, or the plan
//     grants no entitlement for this usage type. The two causes carry
//     different messages (and are logged distinctly) but the same shape.
//   - allowed=false, non-nil error: the backing store failed. The gate
//     fails closed: a usage unit that cannot be verified is never granted.
func (g *QuotaGate) Consume(ctx context.Context, tenantID, userID string, usageType types.UsageType) (*types.QuotaDecision, error) {
	tenant, err := g.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return &types.QuotaDecision{Allowed: false, Message: msgQuotaServerErr}, err
	}

	allotment := g.catalog.Allotments(tenant.PlanCode)[usageType]
	if allotment <= 0 {
		g.logger.Info("quota rejected: plan not entitled",
			"tenant_id", tenantID,
			"plan", string(tenant.PlanCode),
			"usage_type", string(usageType),
		)
		return &types.QuotaDecision{
			Allowed:   false,
			Allotment: 0,
			Message:   msgNotEntitled,
		}, nil
	}

	count, incremented, err := g.ledger.IncrementIfBelow(ctx, tenantID, userID, usageType, g.now(), allotment)
	if err != nil {
		g.logger.Error("quota increment failed",
			"tenant_id", tenantID,
			"usage_type", string(usageType),
			"error", err,
		)
		return &types.QuotaDecision{Allowed: false, Message: msgQuotaServerErr}, err
	}

	if !incremented {
		g.logger.Info("quota rejected: allotment exhausted",
			"tenant_id", tenantID,
			"user_id", userID,
			"usage_type", string(usageType),
			"allotment", allotment,
		)
		return &types.QuotaDecision{
			Allowed:   false,
			Used:      allotment,
			Allotment: allotment,
			Message:   fmt.Sprintf("%s (%d/%d used today)", msgQuotaExhausted, allotment, allotment),
		}, nil
	}

	return &types.QuotaDecision{
		Allowed:   true,
		Used:      count,
		Allotment: allotment,
	}, nil
}
