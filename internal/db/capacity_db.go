package db

import (
	"context"

	"gymdesk/internal/types"
)

// CapacityDBImpl provides the concrete count queries needed by the limit
// checker and the billing calculator. It implements the billing.CapacityDB
// interface.
//
// These queries are intentionally separated from the standard repository
// pattern because they are read-only aggregations serving a specific domain
// need (capacity reporting and billing).
type CapacityDBImpl struct {
	db DBTX
}

// NewCapacityDBImpl creates a new CapacityDBImpl backed by the given
// database connection.
func NewCapacityDBImpl(db DBTX) *CapacityDBImpl {
	return &CapacityDBImpl{db: db}
}

// CountActiveMembers performs the Direct Count query against the members
// table. Only role='member' rows consume plan capacity; coaches and admins
// are free. This is the authoritative count used for both capacity checks
// and overage billing.
//
// SQL: SELECT COUNT(*) FROM members
//
//	WHERE gym_id = $1 AND role = 'member' AND deleted_at IS NULL
func (c *CapacityDBImpl) CountActiveMembers(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := c.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM members
		 WHERE gym_id = $1
		   AND role = 'member'
		   AND deleted_at IS NULL`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count members", err)
	}
	return count, nil
}

// CountBranches performs the Direct Count query against the branches table,
// excluding soft-deleted locations.
func (c *CapacityDBImpl) CountBranches(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := c.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM branches
		 WHERE gym_id = $1
		   AND deleted_at IS NULL`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count branches", err)
	}
	return count, nil
}
