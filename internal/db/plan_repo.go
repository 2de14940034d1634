package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"gymdesk/internal/types"
)

// PlanRepository provides read access to the plans table. Plans are
// immutable reference data edited only by platform operators; application
// code never writes this table.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given
// database connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetByCode retrieves a plan by its stable code. NULL limit columns are
// normalized to the unlimited sentinel so enforcement code never
// special-cases absent limits.
// Returns ErrCodeNotFoundPlan when the code does not resolve.
func (r *PlanRepository) GetByCode(ctx context.Context, code types.PlanCode) (*types.Plan, error) {
	var p types.Plan
	var maxMembers, maxBranches *int

	err := r.db.QueryRow(ctx,
		`SELECT code, name, base_price_cents, max_members, max_branches,
		        extra_member_price_cents, created_at
		 FROM plans
		 WHERE code = $1`,
		code,
	).Scan(
		&p.Code,
		&p.Name,
		&p.BasePriceCents,
		&maxMembers,
		&maxBranches,
		&p.ExtraMemberPriceCents,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan", err)
	}

	p.MaxMembers = types.NormalizeLimit(maxMembers)
	p.MaxBranches = types.NormalizeLimit(maxBranches)
	return &p, nil
}
