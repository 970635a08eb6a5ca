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
	ErrRecipientNotFound = errors.New("campaign recipient not found")
)

type RecipientRepository struct {
	*pg.DB
}

func NewRecipientRepository(db *pg.DB) *RecipientRepository {
	return &RecipientRepository{
		db,
	}
}

// ClaimBatch atomically claims up to limit pending recipients of a campaign
// by conditionally transitioning them pending->queued and stamping the claim
// token. The status condition makes each row claimable by exactly one
// dispatcher pass; a concurrent claim over the same rows observes zero
// affected rows. Returns the claimed rows, fetched back by token.
func (r *RecipientRepository) ClaimBatch(ctx context.Context, campaignID int64, limit int, token string, at time.Time) ([]*model.CampaignRecipient, error) {
	sub := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Select("id").
		Where("campaign_id = ? AND status = ?", campaignID, string(model.RecipientStatusPending)).
		Order("id").
		Limit(limit)

	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("status = ? AND id IN (?)", string(model.RecipientStatusPending), sub).
		Updates(map[string]interface{}{
			"status":      string(model.RecipientStatusQueued),
			"claim_token": token,
			"queued_at":   at,
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, nil
	}

	var entities []*RecipientEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("claim_token = ?", token).
		Order("id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toRecipientModels(entities), nil
}

// MarkSent transitions a claimed recipient queued->sent, attaching the
// template send that the gateway accepted.
func (r *RecipientRepository) MarkSent(ctx context.Context, id int64, sendID int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("id = ? AND status = ?", id, string(model.RecipientStatusQueued)).
		Updates(map[string]interface{}{
			"status":           string(model.RecipientStatusSent),
			"template_send_id": sendID,
			"sent_at":          at,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrRecipientNotFound
	}

	return nil
}

// MarkFailed terminates a recipient with the send error. Valid from any
// non-terminal state so a gateway rejection and a late failure callback both
// land it.
func (r *RecipientRepository) MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("id = ? AND status IN ?", id, []string{
			string(model.RecipientStatusPending),
			string(model.RecipientStatusQueued),
			string(model.RecipientStatusSent),
			string(model.RecipientStatusDelivered),
		}).
		Updates(map[string]interface{}{
			"status":        string(model.RecipientStatusFailed),
			"error_message": errMsg,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ApplyStatus mirrors a delivery-state transition onto the recipient.
// The allowed-from list encodes the monotonic lifecycle; a replayed or
// out-of-order event matches zero rows and reports applied=false, which is
// what keeps campaign counter deltas exactly-once.
func (r *RecipientRepository) ApplyStatus(ctx context.Context, id int64, status model.RecipientStatus, at time.Time) (bool, error) {
	var from []string
	updates := map[string]interface{}{"status": string(status)}

	switch status {
	case model.RecipientStatusDelivered:
		from = []string{string(model.RecipientStatusQueued), string(model.RecipientStatusSent)}
		updates["delivered_at"] = at
	case model.RecipientStatusRead:
		from = []string{
			string(model.RecipientStatusQueued),
			string(model.RecipientStatusSent),
			string(model.RecipientStatusDelivered),
		}
		updates["read_at"] = at
	default:
		return false, errors.New("unsupported recipient status transition")
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// CancelActive skips every recipient not yet dispatched. Already-sent rows
// continue to completion through the reconciler.
func (r *RecipientRepository) CancelActive(ctx context.Context, campaignID int64) (int64, error) {
	reason := string(model.SkipReasonCancelled)
	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("campaign_id = ? AND status IN ?", campaignID, []string{
			string(model.RecipientStatusPending),
			string(model.RecipientStatusQueued),
		}).
		Updates(map[string]interface{}{
			"status":      string(model.RecipientStatusSkipped),
			"skip_reason": reason,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// CountActive reports how many recipients are still pending or queued. Zero
// means every recipient reached a terminal delivery state and the campaign
// can complete.
func (r *RecipientRepository) CountActive(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("campaign_id = ? AND status IN ?", campaignID, []string{
			string(model.RecipientStatusPending),
			string(model.RecipientStatusQueued),
		}).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RequeueStale returns queued-but-never-sent recipients to pending. Covers a
// dispatcher that crashed mid-batch after claiming.
func (r *RecipientRepository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("status = ? AND template_send_id IS NULL AND queued_at < ?", string(model.RecipientStatusQueued), cutoff).
		Updates(map[string]interface{}{
			"status":      string(model.RecipientStatusPending),
			"claim_token": nil,
			"queued_at":   nil,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *RecipientRepository) GetByID(ctx context.Context, id int64) (*model.CampaignRecipient, error) {
	var entity RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	return toRecipientModel(&entity), nil
}

func (r *RecipientRepository) GetBySendID(ctx context.Context, sendID int64) (*model.CampaignRecipient, error) {
	var entity RecipientEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("template_send_id = ?", sendID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	return toRecipientModel(&entity), nil
}

func (r *RecipientRepository) ListByCampaign(ctx context.Context, campaignID int64, limit, offset int) ([]*model.CampaignRecipient, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&RecipientEntity{}).
		Where("campaign_id = ?", campaignID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*RecipientEntity
	if err := q.Order("id").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toRecipientModels(entities), total, nil
}
