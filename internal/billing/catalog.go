// Package billing provides the GymDesk enforcement core: plan catalog,
// feature gating, capacity limit checking, AI quota metering, and monthly
// bill calculation.
package billing

import "gymdesk/internal/types"

// Catalog is the authoritative mapping from plan code to entitlements:
// gated features and per-day AI quota allotments. This is the single
// source of truth for what each plan enables.
//
// Numeric capacity limits (members, branches) live on the plans table, not
// here; the catalog covers the entitlements that are pure reference data.
type Catalog interface {
	// Features returns the feature set for the given plan code.
	// Unknown codes return an empty set: a misconfigured or unrecognized
	// plan must never implicitly grant premium features.
	Features(code types.PlanCode) types.FeatureSet

	// Allotments returns the per-day AI quota allotments for the given
	// plan code. Zero for a usage type means the plan grants no
	// entitlement; unknown codes return zero for everything.
	Allotments(code types.PlanCode) types.QuotaAllotments
}

// planEntitlements bundles the static entitlement data for one plan.
type planEntitlements struct {
	features   types.FeatureSet
	allotments types.QuotaAllotments
}

// catalogDefaults defines the hardcoded entitlements per plan tier.
// Keyed by the stable PlanCode, never by display name, so renaming a plan
// cannot silently strip entitlements.
//
//	| Plan   | Features                                | Routine | Nutrition | Vision | Chat |
//	|--------|-----------------------------------------|---------|-----------|--------|------|
//	| Básico | (none)                                  | 3       | 5         | 0      | 10   |
//	| Pro    | vision_lab, ai_routines, multi_branch   | 10      | 10        | 10     | 50   |
//	| Elite  | all, incl. advanced_reports             | unlimited across the board  |
var catalogDefaults = map[types.PlanCode]planEntitlements{
	types.PlanBasico: {
		features: types.NewFeatureSet(),
		allotments: types.QuotaAllotments{
			types.UsageRoutineGeneration: 3,
			types.UsageNutritionAnalysis: 5,
			types.UsageVisionAnalysis:    0,
			types.UsageAIChat:            10,
		},
	},
	types.PlanPro: {
		features: types.NewFeatureSet(
			types.FeatureVisionLab,
			types.FeatureAIRoutines,
			types.FeatureMultiBranch,
		),
		allotments: types.QuotaAllotments{
			types.UsageRoutineGeneration: 10,
			types.UsageNutritionAnalysis: 10,
			types.UsageVisionAnalysis:    10,
			types.UsageAIChat:            50,
		},
	},
	types.PlanElite: {
		features: types.NewFeatureSet(
			types.FeatureVisionLab,
			types.FeatureAIRoutines,
			types.FeatureMultiBranch,
			types.FeatureAdvancedReports,
		),
		allotments: types.QuotaAllotments{
			types.UsageRoutineGeneration: types.UnlimitedSentinel,
			types.UsageNutritionAnalysis: types.UnlimitedSentinel,
			types.UsageVisionAnalysis:    types.UnlimitedSentinel,
			types.UsageAIChat:            types.UnlimitedSentinel,
		},
	},
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	plans map[types.PlanCode]planEntitlements
}

// NewStaticCatalog returns a Catalog backed by the hardcoded plan
// entitlements. This is the standard production implementation; no database
// or external service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults into a new map so callers cannot mutate the
	// package-level variable.
	m := make(map[types.PlanCode]planEntitlements, len(catalogDefaults))
	for k, v := range catalogDefaults {
		m[k] = v
	}
	return &staticCatalog{plans: m}
}

// Features returns the feature set for the given plan code, or an empty
// set for unknown codes (fail closed).
func (c *staticCatalog) Features(code types.PlanCode) types.FeatureSet {
	if e, ok := c.plans[code]; ok {
		return e.features
	}
	return types.FeatureSet{}
}

// Allotments returns the quota allotments for the given plan code, or an
// empty map (zero for every usage type) for unknown codes.
func (c *staticCatalog) Allotments(code types.PlanCode) types.QuotaAllotments {
	if e, ok := c.plans[code]; ok {
		return e.allotments
	}
	return types.QuotaAllotments{}
}
