package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"gymdesk/internal/types"
)

// QuotaRepository provides data access for the usage_counters table, the
// per-day AI quota ledger. The table has a composite primary key
// (gym_id, user_id, usage_type, day); rows are created lazily on first use
// each day and expire implicitly by date rollover (old rows are historical,
// never deleted).
//
// The only mutation path is IncrementIfBelow, a single atomic server-side
// statement. Application code must never read-then-write this table in two
// round trips: two concurrent requests both reading "2 of 5 used" and both
// incrementing would lose a unit of enforcement.
type QuotaRepository struct {
	db DBTX
}

// NewQuotaRepository creates a new QuotaRepository backed by the given
// database connection (pool or transaction).
func NewQuotaRepository(db DBTX) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// IncrementIfBelow atomically consumes one unit of quota for the
// (tenant, user, type, day) key, but only while the counter is below the
// allotment. It returns the post-increment count and whether the increment
// happened.
//
// SQL pattern (conditional upsert-and-increment in one statement):
//
//	INSERT INTO usage_counters (gym_id, user_id, usage_type, day, count)
//	VALUES ($1, $2, $3, $4, 1)
//	ON CONFLICT (gym_id, user_id, usage_type, day) DO UPDATE
//	  SET count = usage_counters.count + 1
//	  WHERE usage_counters.count < $5
//	RETURNING count
//
// When the counter already sits at the allotment, the ON CONFLICT WHERE
// clause suppresses the update and the statement returns no row
// (pgx.ErrNoRows); the ledger is not mutated and (0, false, nil) is
// returned. The row-level lock taken by the upsert serializes concurrent
// callers, so exactly allotment increments can ever succeed for one key.
//
// An allotment at or above the unlimited sentinel skips the guard and
// increments unconditionally (the row still records consumption for
// reporting).
func (r *QuotaRepository) IncrementIfBelow(
	ctx context.Context,
	tenantID, userID string,
	usageType types.UsageType,
	day time.Time,
	allotment int,
) (int, bool, error) {
	day = types.DayOf(day)

	if allotment >= types.UnlimitedSentinel {
		var count int
		err := r.db.QueryRow(ctx,
			`INSERT INTO usage_counters (gym_id, user_id, usage_type, day, count)
			 VALUES ($1, $2, $3, $4, 1)
			 ON CONFLICT (gym_id, user_id, usage_type, day) DO UPDATE
			   SET count = usage_counters.count + 1
			 RETURNING count`,
			tenantID, userID, usageType, day,
		).Scan(&count)
		if err != nil {
			return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage counter", err)
		}
		return count, true, nil
	}

	var count int
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_counters (gym_id, user_id, usage_type, day, count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (gym_id, user_id, usage_type, day) DO UPDATE
		   SET count = usage_counters.count + 1
		   WHERE usage_counters.count < $5
		 RETURNING count`,
		tenantID, userID, usageType, day, allotment,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Counter is at the allotment; nothing was mutated.
			return 0, false, nil
		}
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage counter", err)
	}
	return count, true, nil
}

// GetCount returns the current counter value for the key, or 0 when no row
// exists yet. Read-only; used for display, never for enforcement decisions.
func (r *QuotaRepository) GetCount(
	ctx context.Context,
	tenantID, userID string,
	usageType types.UsageType,
	day time.Time,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count
		 FROM usage_counters
		 WHERE gym_id = $1 AND user_id = $2 AND usage_type = $3 AND day = $4`,
		tenantID, userID, usageType, types.DayOf(day),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read usage counter", err)
	}
	return count, nil
}

// ListRange returns the ledger rows for a tenant across [from, to],
// ordered by day then usage type. Feeds the usage report export.
func (r *QuotaRepository) ListRange(
	ctx context.Context,
	tenantID string,
	from, to time.Time,
) ([]types.UsageCounter, error) {
	rows, err := r.db.Query(ctx,
		`SELECT gym_id, user_id, usage_type, day, count
		 FROM usage_counters
		 WHERE gym_id = $1
		   AND day >= $2
		   AND day <= $3
		 ORDER BY day ASC, usage_type ASC, user_id ASC`,
		tenantID, types.DayOf(from), types.DayOf(to),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query usage counters", err)
	}
	defer rows.Close()

	var results []types.UsageCounter
	for rows.Next() {
		var c types.UsageCounter
		if err := rows.Scan(&c.TenantID, &c.UserID, &c.UsageType, &c.Day, &c.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan usage counter row", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating usage counter rows", err)
	}

	return results, nil
}
