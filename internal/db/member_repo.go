package db

import (
	"context"

	"gymdesk/internal/types"
)

// MemberRepository provides data access for the members table.
type MemberRepository struct {
	db DBTX
}

// NewMemberRepository creates a new MemberRepository backed by the given
// database connection (pool or transaction).
func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create inserts a new member record. The caller is responsible for the
// capacity check; this method performs the write unconditionally.
func (r *MemberRepository) Create(ctx context.Context, m *types.Member) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO members (id, gym_id, full_name, role, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		m.ID,
		m.TenantID,
		m.FullName,
		m.Role,
		m.State,
		nilIfZeroTime(m.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create member", err)
	}
	return nil
}

// SoftDelete marks a member as removed without deleting the row.
func (r *MemberRepository) SoftDelete(ctx context.Context, tenantID, memberID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE members
		 SET deleted_at = NOW()
		 WHERE id = $1 AND gym_id = $2 AND deleted_at IS NULL`,
		memberID,
		tenantID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete member", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMember, "member not found", nil)
	}
	return nil
}
