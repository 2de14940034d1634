package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"gymdesk/internal/types"
)

// TenantRepository provides data access for the gyms table. Gyms are the
// tenant entities of the platform; rows are soft-deleted only.
type TenantRepository struct {
	db DBTX
}

// NewTenantRepository creates a new TenantRepository backed by the given
// database connection (pool or transaction).
func NewTenantRepository(db DBTX) *TenantRepository {
	return &TenantRepository{db: db}
}

// tenantColumns defines the standard set of columns selected for gym queries.
// Used consistently across all query methods to avoid column drift.
const tenantColumns = `g.id, g.name, g.plan_code, g.payment_state, g.discount_percent,
	g.stripe_customer_id, g.created_at, g.updated_at, g.deleted_at`

// scanTenant scans a single gym row into a types.Tenant struct.
// The columns must match the order defined in tenantColumns.
func scanTenant(row pgx.Row) (*types.Tenant, error) {
	var t types.Tenant
	var stripeCustomerID *string

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.PlanCode,
		&t.PaymentState,
		&t.DiscountPercent,
		&stripeCustomerID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeCustomerID != nil {
		t.StripeCustomerID = *stripeCustomerID
	}
	return &t, nil
}

// Create inserts a new gym record. The caller must set the ID (prefixed
// UUID, e.g. "gym_...") and required fields before calling.
func (r *TenantRepository) Create(ctx context.Context, t *types.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO gyms (id, name, plan_code, payment_state, discount_percent,
		 stripe_customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), COALESCE($8, NOW()))`,
		t.ID,
		t.Name,
		t.PlanCode,
		t.PaymentState,
		t.DiscountPercent,
		nilIfEmpty(t.StripeCustomerID),
		nilIfZeroTime(t.CreatedAt),
		nilIfZeroTime(t.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create gym", err)
	}
	return nil
}

// GetByID retrieves a gym by its ID. Excludes soft-deleted gyms.
// Returns ErrCodeNotFoundTenant if no active gym is found.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*types.Tenant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+`
		 FROM gyms g
		 WHERE g.id = $1 AND g.deleted_at IS NULL`,
		id,
	)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "gym not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve gym", err)
	}
	return t, nil
}

// GetByStripeCustomerID resolves a gym from its payment-provider customer
// reference. Used by the Stripe webhook to map events back to tenants.
func (r *TenantRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Tenant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+`
		 FROM gyms g
		 WHERE g.stripe_customer_id = $1 AND g.deleted_at IS NULL`,
		customerID,
	)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTenant, "gym not found for customer", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve gym by customer", err)
	}
	return t, nil
}

// UpdatePaymentState transitions the gym's payment standing. Driven by the
// payment-provider webhook (invoice paid, payment failed) and by platform
// operators.
func (r *TenantRepository) UpdatePaymentState(ctx context.Context, id string, state types.PaymentState) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE gyms
		 SET payment_state = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		state,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update payment state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTenant, "gym not found", nil)
	}
	return nil
}

// UpdatePlan switches the gym to a different plan. Used when the payment
// provider reports a subscription change.
func (r *TenantRepository) UpdatePlan(ctx context.Context, id string, plan types.PlanCode) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE gyms
		 SET plan_code = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		plan,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update gym plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTenant, "gym not found", nil)
	}
	return nil
}

// UpdateDiscount sets the per-tenant discount percentage. The value is
// clamped to [0, 100] before writing so the billing invariant holds at the
// storage boundary as well as in the calculator.
func (r *TenantRepository) UpdateDiscount(ctx context.Context, id string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE gyms
		 SET discount_percent = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		percent,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update discount", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTenant, "gym not found", nil)
	}
	return nil
}
