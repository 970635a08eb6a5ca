package repository

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid campaign status transition")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

// CreateWithRecipients persists the campaign, its recipient rows and its
// trigger in one shot. The caller wraps this together with the credit
// reservation in a single transaction so admission is all-or-nothing.
func (r *CampaignRepository) CreateWithRecipients(ctx context.Context, c *model.Campaign, recipients []*model.CampaignRecipient, trigger *model.CampaignTrigger) (*model.Campaign, error) {
	entity := toCampaignEntity(c)
	entity.TotalRecipients = len(recipients)

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
			return err
		}

		rows := make([]*RecipientEntity, len(recipients))
		for i, rec := range recipients {
			row := toRecipientEntity(rec)
			row.CampaignID = entity.ID
			row.Status = string(model.RecipientStatusPending)
			rows[i] = row
		}
		if len(rows) > 0 {
			if err := r.Write(ctx).WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}

		trg := toTriggerEntity(trigger)
		trg.CampaignID = entity.ID
		return r.Write(ctx).WithContext(ctx).Create(trg).Error
	})
	if err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	return toCampaignModel(&entity), nil
}

// Transition conditionally moves the campaign from one of the given statuses
// to the target. The conditional update is the only mechanism guarding the
// state machine; RowsAffected==0 means the campaign was not in an eligible
// state (or does not exist).
func (r *CampaignRepository) Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus, extra map[string]interface{}) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	updates := map[string]interface{}{"status": string(to)}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND status IN ?", id, states).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}

	return nil
}

func (r *CampaignRepository) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled},
		model.CampaignStatusRunning,
		map[string]interface{}{"started_at": at})
}

func (r *CampaignRepository) MarkPaused(ctx context.Context, id int64, at time.Time) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusPaused,
		map[string]interface{}{"paused_at": at})
}

func (r *CampaignRepository) MarkResumed(ctx context.Context, id int64) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusPaused},
		model.CampaignStatusRunning,
		map[string]interface{}{"paused_at": nil})
}

func (r *CampaignRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusCompleted,
		map[string]interface{}{"completed_at": at})
}

func (r *CampaignRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusFailed,
		map[string]interface{}{"last_error": lastError})
}

// MarkCancelled is valid from any non-terminal state.
func (r *CampaignRepository) MarkCancelled(ctx context.Context, id int64) error {
	return r.Transition(ctx, id,
		[]model.CampaignStatus{
			model.CampaignStatusDraft,
			model.CampaignStatusScheduled,
			model.CampaignStatusRunning,
			model.CampaignStatusPaused,
		},
		model.CampaignStatusCancelled, nil)
}

// CounterField names a campaign aggregate counter column.
type CounterField string

const (
	CounterSent      CounterField = "sent_count"
	CounterDelivered CounterField = "delivered_count"
	CounterRead      CounterField = "read_count"
	CounterFailed    CounterField = "failed_count"
)

// AddCounter applies a delta to one aggregate counter. Callers pair it with
// the recipient transition that implies the delta inside one
// WithinTransaction, so counters stay reconcilable against recipient rows.
func (r *CampaignRepository) AddCounter(ctx context.Context, id int64, field CounterField, delta int) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update(string(field), gorm.Expr(string(field)+" + ?", delta)).
		Error
}

// RunningIDs lists campaigns the dispatcher should serve this tick.
func (r *CampaignRepository) RunningIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("status = ?", string(model.CampaignStatusRunning)).
		Order("id").
		Pluck("id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DueScheduled returns campaigns in SCHEDULED state whose active scheduled
// trigger has come due.
func (r *CampaignRepository) DueScheduled(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Joins("JOIN campaign_triggers t ON t.campaign_id = campaigns.id").
		Where("campaigns.status = ?", string(model.CampaignStatusScheduled)).
		Where("t.active = ? AND t.kind = ? AND t.scheduled_at <= ?", true, string(model.TriggerScheduled), now).
		Pluck("campaigns.id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FireTrigger records one firing. One-shot kinds (immediate, scheduled) are
// deactivated so they fire exactly once; event triggers stay active.
func (r *CampaignRepository) FireTrigger(ctx context.Context, campaignID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TriggerEntity{}).
		Where("campaign_id = ? AND active = ?", campaignID, true).
		Updates(map[string]interface{}{
			"fire_count": gorm.Expr("fire_count + 1"),
			"active":     gorm.Expr("CASE WHEN kind = ? THEN active ELSE ? END", string(model.TriggerEvent), false),
		})
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *CampaignRepository) GetTriggers(ctx context.Context, campaignID int64) ([]*model.CampaignTrigger, error) {
	var entities []*TriggerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	triggers := make([]*model.CampaignTrigger, len(entities))
	for i, e := range entities {
		triggers[i] = toTriggerModel(e)
	}
	return triggers, nil
}
