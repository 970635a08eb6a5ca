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
	ErrSendNotFound = errors.New("template send not found")
)

type SendRepository struct {
	*pg.DB
}

func NewSendRepository(db *pg.DB) *SendRepository {
	return &SendRepository{
		db,
	}
}

// Create records one accepted outbound attempt. History is immutable:
// retries create new rows.
func (r *SendRepository) Create(ctx context.Context, s *model.TemplateSend) (*model.TemplateSend, error) {
	entity := toSendEntity(s)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toSendModel(entity), nil
}

// GetByExternalID resolves a gateway message id to the send it belongs to.
func (r *SendRepository) GetByExternalID(ctx context.Context, externalID string) (*model.TemplateSend, error) {
	var entity SendEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("external_message_id = ?", externalID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSendNotFound
		}
		return nil, err
	}

	return toSendModel(&entity), nil
}

// ApplyStatus moves the send forward in the ordering sent < delivered < read,
// or to failed from any non-read state. The allowed-from condition makes the
// update a no-op for replayed or regressed events; applied=false tells the
// caller not to count the transition again.
func (r *SendRepository) ApplyStatus(ctx context.Context, id int64, status model.SendStatus, at time.Time, errorCode, errorMessage string) (bool, error) {
	var from []string
	updates := map[string]interface{}{"status": string(status)}

	switch status {
	case model.SendStatusSent:
		return false, nil // initial state, recorded at creation
	case model.SendStatusDelivered:
		from = []string{string(model.SendStatusSent)}
		updates["delivered_at"] = at
	case model.SendStatusRead:
		from = []string{string(model.SendStatusSent), string(model.SendStatusDelivered)}
		updates["read_at"] = at
	case model.SendStatusFailed:
		from = []string{string(model.SendStatusSent), string(model.SendStatusDelivered)}
		updates["error_code"] = errorCode
		updates["error_message"] = errorMessage
	default:
		return false, errors.New("unknown send status")
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&SendEntity{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// FindRecentByButton locates the newest send to the phone whose rendered
// body or template buttons could have produced the clicked button, within
// the attribution window. Matching against button text happens in the
// attributor; this narrows by phone, tenant and recency.
func (r *SendRepository) FindRecentByPhone(ctx context.Context, tenantID int64, phone string, since time.Time, limit int) ([]*model.TemplateSend, error) {
	if limit <= 0 {
		limit = 20
	}

	var entities []*SendEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ? AND phone = ? AND created_at >= ?", tenantID, phone, since).
		Where("status <> ?", string(model.SendStatusFailed)).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toSendModels(entities), nil
}

func (r *SendRepository) GetByID(ctx context.Context, id int64) (*model.TemplateSend, error) {
	var entity SendEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSendNotFound
		}
		return nil, err
	}

	return toSendModel(&entity), nil
}
