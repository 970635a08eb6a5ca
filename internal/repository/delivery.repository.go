package repository

import (
	"context"
	"errors"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/pkg/pg"
	"gorm.io/gorm"
)

type DeliveryRepository struct {
	*pg.DB
}

func NewDeliveryRepository(db *pg.DB) *DeliveryRepository {
	return &DeliveryRepository{
		db,
	}
}

// Apply upserts the per-message delivery record, moving it forward only.
// The rank column makes "later" comparable in a single conditional update:
// the write succeeds only while the stored rank is below the incoming one.
// A read is terminal, so a late failure event never overrides it. Returns
// applied=false for duplicates and regressions, which the reconciler logs
// but does not act on.
func (r *DeliveryRepository) Apply(ctx context.Context, sendID int64, status model.SendStatus, errorCode string) (bool, error) {
	rank := status.Rank()
	if rank < 0 {
		return false, errors.New("unknown delivery status")
	}

	var existing DeliveryStateEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("send_id = ?", sendID).
		First(&existing).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		entity := &DeliveryStateEntity{
			SendID:     sendID,
			Status:     string(status),
			StatusRank: rank,
			ErrorCode:  errorCode,
		}
		if createErr := r.Write(ctx).WithContext(ctx).Create(entity).Error; createErr != nil {
			// Lost a race with a concurrent insert; fall through to the
			// conditional update path.
			return r.applyUpdate(ctx, sendID, status, rank, errorCode)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return r.applyUpdate(ctx, sendID, status, rank, errorCode)
}

func (r *DeliveryRepository) applyUpdate(ctx context.Context, sendID int64, status model.SendStatus, rank int, errorCode string) (bool, error) {
	query := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryStateEntity{}).
		Where("send_id = ? AND status_rank < ?", sendID, rank)
	if status == model.SendStatusFailed {
		query = query.Where("status <> ?", string(model.SendStatusRead))
	}
	result := query.
		Updates(map[string]interface{}{
			"status":      string(status),
			"status_rank": rank,
			"error_code":  errorCode,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// Get returns the stored status for a send, nil when no event arrived yet.
func (r *DeliveryRepository) Get(ctx context.Context, sendID int64) (*model.SendStatus, error) {
	var entity DeliveryStateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("send_id = ?", sendID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return toDeliveryStateModel(&entity), nil
}
