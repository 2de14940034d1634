package billing

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"gymdesk/internal/types"
)

// TenantLookup provides the minimal tenant data the enforcement core needs.
// This is a focused interface to avoid depending on the full
// TenantRepository.
type TenantLookup interface {
	// GetByID returns the tenant for the given ID, or a not-found error.
	GetByID(ctx context.Context, id string) (*types.Tenant, error)
}

// PlanLookup resolves plan reference data. Limits returned are already
// normalized: absent caps appear as the unlimited sentinel.
type PlanLookup interface {
	GetByCode(ctx context.Context, code types.PlanCode) (*types.Plan, error)
}

// CapacityDB provides the direct count queries capacity checks are built on:
//
//	SELECT COUNT(*) FROM members  WHERE gym_id = $1 AND role = 'member' AND deleted_at IS NULL
//	SELECT COUNT(*) FROM branches WHERE gym_id = $1 AND deleted_at IS NULL
type CapacityDB interface {
	CountActiveMembers(ctx context.Context, tenantID string) (int, error)
	CountBranches(ctx context.Context, tenantID string) (int, error)
}

// Failure reason strings surfaced in CapacityReport. These are user-visible
// copy; raw backend errors never leak into them.
const (
	reasonNonpayment  = "subscription suspended for nonpayment"
	reasonSuspended   = "subscription cancelled; capacity is frozen"
	reasonMemberLimit = "member limit reached for current plan"
	reasonBranchLimit = "branch limit reached for current plan"
)

// LimitChecker computes whether a tenant may add members or branches.
//
// The check is advisory capacity reporting, not a hard reservation: two
// concurrent member-adds can both observe count = limit-1 and both pass.
// That overshoot is accepted and absorbed by overage billing; only the
// quota gate gets the atomic treatment.
type LimitChecker struct {
	tenants  TenantLookup
	plans    PlanLookup
	capacity CapacityDB
}

// NewLimitChecker creates a LimitChecker over the given lookups.
func NewLimitChecker(tenants TenantLookup, plans PlanLookup, capacity CapacityDB) *LimitChecker {
	return &LimitChecker{
		tenants:  tenants,
		plans:    plans,
		capacity: capacity,
	}
}

// CheckTenantLimits reports the tenant's capacity state: whether a member
// or branch may be added, the live counts, and the effective limits.
//
// Decision order:
//  1. Payment state: an unpaid or suspended tenant can add nothing,
//     regardless of counts. This takes precedence over numeric limits
//     and leads the reason string.
//  2. Numeric limits, strict less-than: a plan with limit 10 holds exactly
//     10 members and refuses the 11th.
//
// A tenant or plan that does not resolve propagates as a not-found error;
// it is never swallowed into a false "allowed" result. The method is
// read-only and safe to call concurrently.
func (l *LimitChecker) CheckTenantLimits(ctx context.Context, tenantID string) (*types.CapacityReport, error) {
	tenant, err := l.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	plan, err := l.plans.GetByCode(ctx, tenant.PlanCode)
	if err != nil {
		return nil, err
	}

	// The two counts hit independent tables; fetch them in parallel.
	var members, branches int
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = l.capacity.CountActiveMembers(gCtx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		branches, err = l.capacity.CountBranches(gCtx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &types.CapacityReport{
		CurrentMembers:  members,
		CurrentBranches: branches,
		MemberLimit:     plan.MaxMembers,
		BranchLimit:     plan.MaxBranches,
		CanAddMember:    members < plan.MaxMembers,
		CanAddBranch:    branches < plan.MaxBranches,
	}

	switch tenant.PaymentState {
	case types.PaymentUnpaid:
		report.CanAddMember = false
		report.CanAddBranch = false
		report.Reason = reasonNonpayment
		return report, nil
	case types.PaymentSuspended:
		// A cancelled subscription keeps its data but grants no capacity.
		report.CanAddMember = false
		report.CanAddBranch = false
		report.Reason = reasonSuspended
		return report, nil
	}

	var reasons []string
	if !report.CanAddMember {
		reasons = append(reasons, reasonMemberLimit)
	}
	if !report.CanAddBranch {
		reasons = append(reasons, reasonBranchLimit)
	}
	report.Reason = strings.Join(reasons, "; ")

	return report, nil
}

// NonpaymentRefusal reports whether a capacity refusal was caused by the
// tenant's payment standing rather than plan capacity. Callers use it to
// pick the right refusal error code.
func NonpaymentRefusal(r *types.CapacityReport) bool {
	if r == nil {
		return false
	}
	return r.Reason == reasonNonpayment || r.Reason == reasonSuspended
}
