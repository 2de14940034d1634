package types

// PlanCode is the stable identifier for a subscription plan. Feature and
// quota mappings are keyed by PlanCode, never by display name, so renaming
// a plan in the UI cannot silently strip its entitlements.
type PlanCode string

const (
	PlanBasico PlanCode = "basico"
	PlanPro    PlanCode = "pro"
	PlanElite  PlanCode = "elite"
)

// PaymentState represents the billing standing of a tenant.
// Tenants are never hard-deleted; suspension is expressed through state.
type PaymentState string

const (
	PaymentActive    PaymentState = "active"
	PaymentSuspended PaymentState = "suspended"
	PaymentUnpaid    PaymentState = "unpaid"
)

// MemberRole defines the role of a person within a gym. Only RoleMember
// counts against the plan's member limit.
type MemberRole string

const (
	RoleMember     MemberRole = "member"
	RoleCoach      MemberRole = "coach"
	RoleAdmin      MemberRole = "admin"
	RoleSuperadmin MemberRole = "superadmin"
)

// MemberState represents the membership lifecycle state.
type MemberState string

const (
	MemberActive   MemberState = "active"
	MemberInactive MemberState = "inactive"
	MemberFrozen   MemberState = "frozen"
)

// UsageType tags a metered AI operation. Each type has its own per-day
// allotment in the plan catalog.
type UsageType string

const (
	UsageRoutineGeneration UsageType = "routine_generation"
	UsageNutritionAnalysis UsageType = "nutrition_analysis"
	UsageVisionAnalysis    UsageType = "vision_analysis"
	UsageAIChat            UsageType = "ai_chat"
)

// AllUsageTypes lists every metered usage type. Used for request validation
// and the usage report export.
var AllUsageTypes = []UsageType{
	UsageRoutineGeneration,
	UsageNutritionAnalysis,
	UsageVisionAnalysis,
	UsageAIChat,
}

// Valid reports whether the usage type is one of the known metered types.
func (u UsageType) Valid() bool {
	switch u {
	case UsageRoutineGeneration, UsageNutritionAnalysis, UsageVisionAnalysis, UsageAIChat:
		return true
	default:
		return false
	}
}

// FeatureName identifies a gated plan capability.
type FeatureName string

const (
	FeatureVisionLab       FeatureName = "vision_lab"
	FeatureMultiBranch     FeatureName = "multi_branch"
	FeatureAIRoutines      FeatureName = "ai_routines"
	FeatureAdvancedReports FeatureName = "advanced_reports"
)

// AlertKind classifies the billing/limit alert messages dispatched to the
// notification queue.
type AlertKind string

const (
	AlertLimitReached     AlertKind = "limit_reached"
	AlertQuotaExhausted   AlertKind = "quota_exhausted"
	AlertPaymentSuspended AlertKind = "payment_suspended"
)

// ActorType identifies the kind of authenticated entity making a request.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeSystem ActorType = "system"
)
