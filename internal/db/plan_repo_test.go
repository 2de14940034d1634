package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/types"
)

func TestPlanRepository_GetByCode_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	fifty := 50
	one := 1
	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*types.PlanCode) = types.PlanBasico
				*dest[1].(*string) = "Básico"
				*dest[2].(*int64) = 10000
				*dest[3].(**int) = &fifty
				*dest[4].(**int) = &one
				*dest[5].(*int64) = 0
				*dest[6].(*time.Time) = time.Now().UTC()
				return nil
			},
		})

	plan, err := repo.GetByCode(context.Background(), types.PlanBasico)
	require.NoError(t, err)
	assert.Equal(t, types.PlanBasico, plan.Code)
	assert.Equal(t, int64(10000), plan.BasePriceCents)
	assert.Equal(t, 50, plan.MaxMembers)
	assert.Equal(t, 1, plan.MaxBranches)
}

func TestPlanRepository_GetByCode_NullLimitsAreUnlimited(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*types.PlanCode) = types.PlanElite
				*dest[1].(*string) = "Elite"
				*dest[2].(*int64) = 50000
				*dest[3].(**int) = nil
				*dest[4].(**int) = nil
				*dest[5].(*int64) = 0
				*dest[6].(*time.Time) = time.Now().UTC()
				return nil
			},
		})

	plan, err := repo.GetByCode(context.Background(), types.PlanElite)
	require.NoError(t, err)
	assert.Equal(t, types.UnlimitedSentinel, plan.MaxMembers)
	assert.Equal(t, types.UnlimitedSentinel, plan.MaxBranches)
}

func TestPlanRepository_GetByCode_NotFound(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	plan, err := repo.GetByCode(context.Background(), types.PlanCode("legacy_gold"))
	require.Error(t, err)
	assert.Nil(t, plan)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
}
