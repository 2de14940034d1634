// Package handlers contains the HTTP handler implementations for the
// GymDesk API. Each handler declares the narrow interfaces it needs from
// the billing core, the repositories, and the external clients, and mounts
// its own routes on the v1 router.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gymdesk/internal/core"
	"gymdesk/internal/types"
)

// AlertNotifier dispatches advisory billing alerts to the notification
// queue. Delivery is best effort: handlers log failures and never fail the
// request over them. queue.AlertTrigger is the production implementation.
type AlertNotifier interface {
	LimitRefused(ctx context.Context, tenantID string, kind types.AlertKind, detail string) error
	QuotaExhausted(ctx context.Context, tenantID string, usageType types.UsageType, detail string) error
}

// DecisionRecorder emits enforcement decision metrics. A nil recorder
// disables emission. core.CloudWatchMetrics is the production
// implementation.
type DecisionRecorder interface {
	RecordQuotaDecision(usageType types.UsageType, result string)
	RecordLimitRefusal(resource string)
}

// CapacityChecker evaluates a tenant's plan limits and payment standing.
type CapacityChecker interface {
	CheckTenantLimits(ctx context.Context, tenantID string) (*types.CapacityReport, error)
}

// FeatureChecker answers whether a tenant's plan enables a capability.
type FeatureChecker interface {
	HasFeature(ctx context.Context, tenantID string, feature types.FeatureName) (bool, error)
}

// Metric result labels for quota decisions.
const (
	quotaResultAllowed     = "allowed"
	quotaResultExhausted   = "exhausted"
	quotaResultNotEntitled = "not_entitled"
)

// timeNow is an indirection point for tests.
var timeNow = time.Now

// Entity IDs are prefixed UUIDs so an identifier is recognizable on its
// own in logs and support tickets.
func newGymID() string    { return "gym_" + uuid.NewString() }
func newMemberID() string { return "mem_" + uuid.NewString() }
func newBranchID() string { return "br_" + uuid.NewString() }

// requireTenant pulls the authenticated actor off the request context and
// rejects requests that carry no tenant association. Auth middleware
// normally guarantees the actor is present; this guards direct handler use.
func requireTenant(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.TenantID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"request is not associated with a tenant",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}

// requireSystem admits only platform-operator tokens. System actors are
// not tenant-scoped, so this deliberately does not check TenantID.
func requireSystem(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.Type != types.ActorTypeSystem {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"platform administration requires a system token",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}
