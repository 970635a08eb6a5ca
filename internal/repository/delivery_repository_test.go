package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/model"
)

func TestDeliveryRepository_Apply_Monotonic(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewDeliveryRepository(db)
	ctx := context.Background()

	t.Run("first event creates the record", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusSent, "")
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("forward transition applies", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusDelivered, "")
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("duplicate event is a no-op", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusDelivered, "")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("regression is rejected", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusSent, "")
		require.NoError(t, err)
		assert.False(t, applied)

		status, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, model.SendStatusDelivered, *status)
	})

	t.Run("failed overrides non-terminal", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusFailed, "131026")
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("nothing overrides failed", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 1, model.SendStatusRead, "")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("read can skip delivered", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 2, model.SendStatusSent, "")
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = repo.Apply(ctx, 2, model.SendStatusRead, "")
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("failed does not override read", func(t *testing.T) {
		applied, err := repo.Apply(ctx, 2, model.SendStatusFailed, "131026")
		require.NoError(t, err)
		assert.False(t, applied)

		status, err := repo.Get(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, model.SendStatusRead, *status)
	})

	t.Run("unknown send has no record", func(t *testing.T) {
		status, err := repo.Get(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}
