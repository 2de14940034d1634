package db

import (
	"context"

	"gymdesk/internal/types"
)

// BranchRepository provides data access for the branches table.
type BranchRepository struct {
	db DBTX
}

// NewBranchRepository creates a new BranchRepository backed by the given
// database connection (pool or transaction).
func NewBranchRepository(db DBTX) *BranchRepository {
	return &BranchRepository{db: db}
}

// Create inserts a new branch record. The caller is responsible for the
// capacity check; this method performs the write unconditionally.
func (r *BranchRepository) Create(ctx context.Context, b *types.Branch) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO branches (id, gym_id, name, address, created_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		b.ID,
		b.TenantID,
		b.Name,
		b.Address,
		nilIfZeroTime(b.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create branch", err)
	}
	return nil
}

// SoftDelete marks a branch as removed without deleting the row.
func (r *BranchRepository) SoftDelete(ctx context.Context, tenantID, branchID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE branches
		 SET deleted_at = NOW()
		 WHERE id = $1 AND gym_id = $2 AND deleted_at IS NULL`,
		branchID,
		tenantID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete branch", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundBranch, "branch not found", nil)
	}
	return nil
}
