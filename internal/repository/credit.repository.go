package repository

import (
	"context"
	"errors"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound      = errors.New("tenant balance not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// CreditRepository mutates tenant balances through single conditional
// updates only. Callers never read-then-write a balance; the conditional
// update is what prevents double-spend under concurrent campaign creation.
type CreditRepository struct {
	*pg.DB
}

func NewCreditRepository(db *pg.DB) *CreditRepository {
	return &CreditRepository{
		db,
	}
}

// Reserve atomically deducts amount from the tenant's remaining credits.
// The update only succeeds while remaining >= amount. Returns the balance
// left after the reservation.
func (r *CreditRepository) Reserve(ctx context.Context, tenantID int64, amount int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CreditBalanceEntity{}).
		Where("tenant_id = ? AND remaining >= ?", tenantID, amount).
		Updates(map[string]interface{}{
			"remaining":  gorm.Expr("remaining - ?", amount),
			"total_used": gorm.Expr("total_used + ?", amount),
		})

	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		return 0, r.checkReserveFailureReason(ctx, tenantID)
	}

	return r.GetRemaining(ctx, tenantID)
}

// checkReserveFailureReason determines why the conditional update matched no row.
func (r *CreditRepository) checkReserveFailureReason(ctx context.Context, tenantID int64) error {
	var entity CreditBalanceEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTenantNotFound
		}
		return err
	}

	return ErrInsufficientCredits
}

// Add credits a top-up onto the tenant balance.
func (r *CreditRepository) Add(ctx context.Context, tenantID int64, amount int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CreditBalanceEntity{}).
		Where("tenant_id = ?", tenantID).
		Update("remaining", gorm.Expr("remaining + ?", amount))

	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		return 0, ErrTenantNotFound
	}

	return r.GetRemaining(ctx, tenantID)
}

// GetBalance returns the full balance row for a tenant.
func (r *CreditRepository) GetBalance(ctx context.Context, tenantID int64) (*model.CreditBalance, error) {
	var entity CreditBalanceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	return toCreditBalanceModel(&entity), nil
}

func (r *CreditRepository) GetRemaining(ctx context.Context, tenantID int64) (int64, error) {
	var entity CreditBalanceEntity
	err := r.Write(ctx).WithContext(ctx).
		Select("remaining").
		Where("tenant_id = ?", tenantID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTenantNotFound
		}
		return 0, err
	}

	return entity.Remaining, nil
}
