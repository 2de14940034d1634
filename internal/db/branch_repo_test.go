package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/types"
)

func TestBranchRepository_Create_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewBranchRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(execTag("INSERT", 1), nil)

	err := repo.Create(context.Background(), &types.Branch{
		ID:       "br_1",
		TenantID: "gym_1",
		Name:     "Centro",
		Address:  "Av. Libertador 1200",
	})
	require.NoError(t, err)
	dbMock.AssertExpectations(t)
}

func TestBranchRepository_SoftDelete_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewBranchRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(execTag("UPDATE", 1), nil)

	require.NoError(t, repo.SoftDelete(context.Background(), "gym_1", "br_1"))
}

func TestBranchRepository_SoftDelete_NotFound(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewBranchRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(execTag("UPDATE", 0), nil)

	err := repo.SoftDelete(context.Background(), "gym_1", "br_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundBranch, appErr.Code)
}
