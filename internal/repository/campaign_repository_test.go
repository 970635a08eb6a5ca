package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/model"
)

func TestCampaignRepository_CreateWithRecipients(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	recipients := []*model.CampaignRecipient{
		{ContactID: 1, Variables: map[string]string{"1": "Ada"}},
		{ContactID: 2},
		{ContactID: 3},
	}
	trigger := &model.CampaignTrigger{Kind: model.TriggerImmediate, Active: true}

	c, err := repo.CreateWithRecipients(ctx, &model.Campaign{
		TenantID:   1,
		TemplateID: 1,
		ChannelID:  1,
		Name:       "launch",
		Status:     model.CampaignStatusDraft,
	}, recipients, trigger)
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, 3, c.TotalRecipients)

	var recCount int64
	require.NoError(t, db.rawDB.Model(&RecipientEntity{}).Where("campaign_id = ?", c.ID).Count(&recCount).Error)
	assert.Equal(t, int64(3), recCount)

	triggers, err := repo.GetTriggers(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, model.TriggerImmediate, triggers[0].Kind)
	assert.True(t, triggers[0].Active)

	// every recipient starts pending
	var pending int64
	require.NoError(t, db.rawDB.Model(&RecipientEntity{}).
		Where("campaign_id = ? AND status = ?", c.ID, string(model.RecipientStatusPending)).
		Count(&pending).Error)
	assert.Equal(t, int64(3), pending)
}

func TestCampaignRepository_Transitions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	created, err := repo.CreateWithRecipients(ctx, &model.Campaign{
		TenantID: 1, TemplateID: 1, ChannelID: 1,
		Status: model.CampaignStatusDraft,
	}, []*model.CampaignRecipient{{ContactID: 1}}, &model.CampaignTrigger{Kind: model.TriggerImmediate, Active: true})
	require.NoError(t, err)
	id := created.ID

	t.Run("draft to running", func(t *testing.T) {
		require.NoError(t, repo.MarkRunning(ctx, id, time.Now()))
		c, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusRunning, c.Status)
		assert.NotNil(t, c.StartedAt)
	})

	t.Run("running to paused and back", func(t *testing.T) {
		require.NoError(t, repo.MarkPaused(ctx, id, time.Now()))
		require.NoError(t, repo.MarkResumed(ctx, id))
		c, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusRunning, c.Status)
	})

	t.Run("completed is terminal", func(t *testing.T) {
		require.NoError(t, repo.MarkCompleted(ctx, id, time.Now()))
		assert.ErrorIs(t, repo.MarkRunning(ctx, id, time.Now()), ErrInvalidTransition)
		assert.ErrorIs(t, repo.MarkCancelled(ctx, id), ErrInvalidTransition)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkRunning(ctx, 999, time.Now()), ErrCampaignNotFound)
	})
}

func TestCampaignRepository_AddCounter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	created, err := repo.CreateWithRecipients(ctx, &model.Campaign{
		TenantID: 1, TemplateID: 1, ChannelID: 1,
		Status: model.CampaignStatusRunning,
	}, []*model.CampaignRecipient{{ContactID: 1}, {ContactID: 2}}, &model.CampaignTrigger{Kind: model.TriggerImmediate})
	require.NoError(t, err)

	require.NoError(t, repo.AddCounter(ctx, created.ID, CounterSent, 1))
	require.NoError(t, repo.AddCounter(ctx, created.ID, CounterSent, 1))
	require.NoError(t, repo.AddCounter(ctx, created.ID, CounterDelivered, 1))
	require.NoError(t, repo.AddCounter(ctx, created.ID, CounterFailed, 1))

	c, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.SentCount)
	assert.Equal(t, 1, c.DeliveredCount)
	assert.Equal(t, 1, c.FailedCount)
	assert.Equal(t, 0, c.ReadCount)
}

func TestCampaignRepository_DueScheduledAndFireTrigger(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due, err := repo.CreateWithRecipients(ctx, &model.Campaign{
		TenantID: 1, TemplateID: 1, ChannelID: 1,
		Status: model.CampaignStatusScheduled,
	}, []*model.CampaignRecipient{{ContactID: 1}}, &model.CampaignTrigger{Kind: model.TriggerScheduled, ScheduledAt: &past, Active: true})
	require.NoError(t, err)

	_, err = repo.CreateWithRecipients(ctx, &model.Campaign{
		TenantID: 1, TemplateID: 1, ChannelID: 1,
		Status: model.CampaignStatusScheduled,
	}, []*model.CampaignRecipient{{ContactID: 2}}, &model.CampaignTrigger{Kind: model.TriggerScheduled, ScheduledAt: &future, Active: true})
	require.NoError(t, err)

	ids, err := repo.DueScheduled(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{due.ID}, ids)

	require.NoError(t, repo.FireTrigger(ctx, due.ID))

	triggers, err := repo.GetTriggers(ctx, due.ID)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, 1, triggers[0].FireCount)
	assert.False(t, triggers[0].Active, "one-shot trigger fires exactly once")
}
