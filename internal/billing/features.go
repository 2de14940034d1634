package billing

import (
	"context"

	"gymdesk/internal/types"
)

// FeatureGate answers whether a tenant's plan includes a named feature.
// Backed by the static catalog; an unrecognized plan code yields an empty
// feature set and therefore false for every feature (fail closed, not
// fail open).
type FeatureGate struct {
	tenants TenantLookup
	catalog Catalog
}

// NewFeatureGate creates a FeatureGate over the given tenant lookup and
// catalog.
func NewFeatureGate(tenants TenantLookup, catalog Catalog) *FeatureGate {
	return &FeatureGate{
		tenants: tenants,
		catalog: catalog,
	}
}

// HasFeature reports whether the tenant's plan enables the named feature.
// A tenant that does not resolve propagates as a not-found error; a plan
// code the catalog does not recognize answers false.
func (f *FeatureGate) HasFeature(ctx context.Context, tenantID string, feature types.FeatureName) (bool, error) {
	tenant, err := f.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return f.catalog.Features(tenant.PlanCode).Has(feature), nil
}
