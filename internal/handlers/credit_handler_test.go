package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
)

type MockCreditRepo struct {
	mock.Mock
}

func (m *MockCreditRepo) GetBalance(ctx context.Context, tenantID int64) (*model.CreditBalance, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditBalance), args.Error(1)
}

func (m *MockCreditRepo) Add(ctx context.Context, tenantID int64, amount int64) (int64, error) {
	args := m.Called(ctx, tenantID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func TestCreditHandler_GetBalance(t *testing.T) {
	t.Run("returns the balance", func(t *testing.T) {
		repo := new(MockCreditRepo)
		repo.On("GetBalance", mock.Anything, int64(1)).
			Return(&model.CreditBalance{TenantID: 1, Remaining: 120, TotalUsed: 30}, nil)
		h := NewCreditHandler(repo)

		ctx := setupTestContext("GET", "/api/v1/credits?tenant_id=1", nil)
		h.GetBalance(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var balance model.CreditBalance
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &balance))
		assert.Equal(t, int64(120), balance.Remaining)
		assert.Equal(t, int64(30), balance.TotalUsed)
	})

	t.Run("missing tenant_id", func(t *testing.T) {
		h := NewCreditHandler(new(MockCreditRepo))

		ctx := setupTestContext("GET", "/api/v1/credits", nil)
		h.GetBalance(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("unknown tenant", func(t *testing.T) {
		repo := new(MockCreditRepo)
		repo.On("GetBalance", mock.Anything, int64(9)).
			Return(nil, repository.ErrTenantNotFound)
		h := NewCreditHandler(repo)

		ctx := setupTestContext("GET", "/api/v1/credits?tenant_id=9", nil)
		h.GetBalance(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestCreditHandler_TopUp(t *testing.T) {
	t.Run("tops up and returns the new balance", func(t *testing.T) {
		repo := new(MockCreditRepo)
		repo.On("Add", mock.Anything, int64(1), int64(500)).Return(int64(620), nil)
		h := NewCreditHandler(repo)

		body, _ := json.Marshal(topUpRequest{TenantID: 1, Amount: 500})
		ctx := setupTestContext("POST", "/api/v1/credits/topup", body)
		h.TopUp(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp topUpResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, int64(620), resp.Remaining)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		repo := new(MockCreditRepo)
		h := NewCreditHandler(repo)

		body, _ := json.Marshal(topUpRequest{TenantID: 1, Amount: 0})
		ctx := setupTestContext("POST", "/api/v1/credits/topup", body)
		h.TopUp(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())
		repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		repo := new(MockCreditRepo)
		repo.On("Add", mock.Anything, int64(9), int64(10)).
			Return(int64(0), repository.ErrTenantNotFound)
		h := NewCreditHandler(repo)

		body, _ := json.Marshal(topUpRequest{TenantID: 9, Amount: 10})
		ctx := setupTestContext("POST", "/api/v1/credits/topup", body)
		h.TopUp(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}
