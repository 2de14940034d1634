package billing

import (
	"context"

	"gymdesk/internal/types"
)

// Calculator derives the monthly amount owed by a tenant from its plan's
// base price, the per-tenant discount, and overage charges for members
// beyond the included limit.
type Calculator struct {
	tenants  TenantLookup
	plans    PlanLookup
	capacity CapacityDB
}

// NewCalculator creates a Calculator over the given lookups.
func NewCalculator(tenants TenantLookup, plans PlanLookup, capacity CapacityDB) *Calculator {
	return &Calculator{
		tenants:  tenants,
		plans:    plans,
		capacity: capacity,
	}
}

// CalculateMonthlyBill computes the amount due for the current billing
// period:
//
//	extraMembers   = max(0, currentMembers - memberLimit)
//	extraCost      = extraMembers * perExtraMemberPrice
//	discountedBase = basePrice * (1 - discount/100)
//	total          = discountedBase + extraCost
//
// The discount applies only to the base subscription fee, never to the
// overage: usage-based pricing stays predictable. Discount is clamped to
// [0, 100] and the total can never go negative.
//
// LimitReached (currentMembers >= memberLimit) is reported for UI display
// independent of the numeric total.
//
// A tenant whose plan does not resolve is a hard error: billing cannot
// proceed without a plan, and the failure propagates rather than
// defaulting to zero.
func (c *Calculator) CalculateMonthlyBill(ctx context.Context, tenantID string) (*types.MonthlyBill, error) {
	tenant, err := c.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	plan, err := c.plans.GetByCode(ctx, tenant.PlanCode)
	if err != nil {
		return nil, err
	}

	members, err := c.capacity.CountActiveMembers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	discount := tenant.DiscountPercent
	if discount < 0 {
		discount = 0
	}
	if discount > 100 {
		discount = 100
	}

	extraMembers := 0
	if members > plan.MaxMembers {
		extraMembers = members - plan.MaxMembers
	}
	extraCost := int64(extraMembers) * plan.ExtraMemberPriceCents

	// Integer cents arithmetic; the division truncates toward zero, which
	// rounds the discounted base down in the customer's favor.
	discountedBase := plan.BasePriceCents * int64(100-discount) / 100

	total := discountedBase + extraCost
	if total < 0 {
		total = 0
	}

	return &types.MonthlyBill{
		BasePriceCents:       plan.BasePriceCents,
		DiscountPercent:      discount,
		ExtraMembers:         extraMembers,
		ExtraMemberCostCents: extraCost,
		TotalCents:           total,
		LimitReached:         members >= plan.MaxMembers,
	}, nil
}
