package repository

import (
	"github.com/waveline/campaign-engine/internal/model"
)

type CreditBalanceEntity struct {
	TenantID  int64 `db:"tenant_id"  gorm:"primaryKey;column:tenant_id"`
	Remaining int64 `db:"remaining"  gorm:"column:remaining;not null;default:0"`
	TotalUsed int64 `db:"total_used" gorm:"column:total_used;not null;default:0"`
}

func (CreditBalanceEntity) TableName() string {
	return "credit_balances"
}

func toCreditBalanceModel(e *CreditBalanceEntity) *model.CreditBalance {
	if e == nil {
		return nil
	}
	return &model.CreditBalance{
		TenantID:  e.TenantID,
		Remaining: e.Remaining,
		TotalUsed: e.TotalUsed,
	}
}
