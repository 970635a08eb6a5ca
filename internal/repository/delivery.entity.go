package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

// DeliveryStateEntity is the per-message delivery-status record, one row per
// send, holding the furthest status reported by the gateway.
type DeliveryStateEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	SendID     int64     `db:"send_id"     gorm:"column:send_id;not null;uniqueIndex"`
	Status     string    `db:"status"      gorm:"column:status;not null;index"`
	StatusRank int       `db:"status_rank" gorm:"column:status_rank;not null;default:0"`
	ErrorCode  string    `db:"error_code"  gorm:"column:error_code"`
	UpdatedAt  time.Time `db:"updated_at"  gorm:"column:updated_at;autoUpdateTime"`
}

func (DeliveryStateEntity) TableName() string {
	return "delivery_states"
}

func toDeliveryStateModel(e *DeliveryStateEntity) *model.SendStatus {
	if e == nil {
		return nil
	}
	s := model.SendStatus(e.Status)
	return &s
}
