// Package types defines the shared domain model for the GymDesk platform:
// tenants (gyms), plans, branches, members, the per-day AI usage ledger,
// and the result shapes produced by the enforcement core.
package types

import (
	"strconv"
	"time"
)

// UnlimitedSentinel is the internal representation of an absent plan limit.
// It is a large finite integer rather than a null or infinity so that every
// comparison site can use plain arithmetic. The external interface renders
// it symbolically via LimitDisplay.
const UnlimitedSentinel = 1<<31 - 1

// Tenant is a single gym organization: the unit of billing and isolation.
// Tenants are soft-deleted only; DeletedAt marks removal.
type Tenant struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	PlanCode         PlanCode     `json:"plan_code"`
	PaymentState     PaymentState `json:"payment_state"`
	DiscountPercent  int          `json:"discount_percent"`
	StripeCustomerID string       `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	DeletedAt        *time.Time   `json:"-"`
}

// Plan is immutable reference data describing a service tier. Limits are
// normalized at load time: a NULL limit column becomes UnlimitedSentinel.
// Monetary amounts are integer cents to keep billing arithmetic exact.
type Plan struct {
	Code                  PlanCode  `json:"code"`
	Name                  string    `json:"name"`
	BasePriceCents        int64     `json:"base_price_cents"`
	MaxMembers            int       `json:"max_members"`
	MaxBranches           int       `json:"max_branches"`
	ExtraMemberPriceCents int64     `json:"extra_member_price_cents"`
	CreatedAt             time.Time `json:"created_at"`
}

// Branch is a physical gym location belonging to exactly one tenant.
type Branch struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// Member is a person attached to a tenant. Only RoleMember rows count
// against the plan's member limit.
type Member struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	FullName  string      `json:"full_name"`
	Role      MemberRole  `json:"role"`
	State     MemberState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	DeletedAt *time.Time  `json:"-"`
}

// UsageCounter is one row of the quota ledger, keyed by
// (tenant, user, usage type, day). Count only ever increases, and only
// through the atomic increment in QuotaRepository.
type UsageCounter struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	UsageType UsageType `json:"usage_type"`
	Day       time.Time `json:"day"`
	Count     int       `json:"count"`
}

// CapacityReport is the result of a tenant limit check. It is advisory:
// the checker decides pass/fail, refusal is enforced by the caller.
type CapacityReport struct {
	CanAddMember    bool   `json:"can_add_member"`
	CanAddBranch    bool   `json:"can_add_branch"`
	CurrentMembers  int    `json:"current_members"`
	CurrentBranches int    `json:"current_branches"`
	MemberLimit     int    `json:"member_limit"`
	BranchLimit     int    `json:"branch_limit"`
	// Reason is populated only when at least one check fails. Nonpayment
	// takes precedence over capacity causes.
	Reason string `json:"reason,omitempty"`
}

// QuotaDecision is the result of a quota consumption attempt.
// Allowed=true means one unit was consumed; the call is not idempotent.
type QuotaDecision struct {
	Allowed   bool   `json:"allowed"`
	Used      int    `json:"used"`
	Allotment int    `json:"allotment"`
	Message   string `json:"message,omitempty"`
}

// MonthlyBill is the computed amount owed by a tenant for the current
// billing period. The discount applies to the base fee only; overage
// pricing stays predictable by never being discounted.
type MonthlyBill struct {
	BasePriceCents       int64 `json:"base_price_cents"`
	DiscountPercent      int   `json:"discount_percent"`
	ExtraMembers         int   `json:"extra_members"`
	ExtraMemberCostCents int64 `json:"extra_member_cost_cents"`
	TotalCents           int64 `json:"total_cents"`
	LimitReached         bool  `json:"limit_reached"`
}

// QuotaAllotments maps each metered usage type to its per-day allotment.
// Zero means the plan grants no entitlement for that type; unlimited
// entitlement uses UnlimitedSentinel.
type QuotaAllotments map[UsageType]int

// FeatureSet is the set of capabilities a plan enables.
type FeatureSet map[FeatureName]struct{}

// Has reports whether the named feature is in the set. An empty or nil
// set answers false for everything (fail closed).
func (s FeatureSet) Has(f FeatureName) bool {
	_, ok := s[f]
	return ok
}

// NewFeatureSet builds a FeatureSet from the listed features.
func NewFeatureSet(features ...FeatureName) FeatureSet {
	s := make(FeatureSet, len(features))
	for _, f := range features {
		s[f] = struct{}{}
	}
	return s
}

// BillingAlertMessage is the payload enqueued for the external notification
// service when an enforcement event worth surfacing to the tenant occurs.
type BillingAlertMessage struct {
	TenantID   string    `json:"tenant_id"`
	Kind       AlertKind `json:"kind"`
	UsageType  UsageType `json:"usage_type,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id"`
}

// LimitDisplay renders a normalized limit for external consumers:
// the sentinel becomes the symbolic string "unlimited".
func LimitDisplay(limit int) string {
	if limit >= UnlimitedSentinel {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

// NormalizeLimit converts a nullable limit column into the internal
// representation: nil or non-positive means no cap.
func NormalizeLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return UnlimitedSentinel
	}
	return *limit
}

// DayOf truncates a timestamp to its UTC calendar day. Quota ledger keys
// always use UTC days so the reset boundary does not drift with server
// timezone configuration.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
