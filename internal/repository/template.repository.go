package repository

import (
	"context"
	"errors"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
)

// TemplateRepository is read-only: template creation and the provider
// approval workflow live outside the engine.
type TemplateRepository struct {
	*pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{
		db,
	}
}

func (r *TemplateRepository) Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error) {
	var entity TemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	return toTemplateModel(&entity), nil
}

// ListByTenant returns every template of the tenant. Used by the click
// attributor's fallback button search; tenants hold few templates, so the
// button matching happens in memory.
func (r *TemplateRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*model.MessageTemplate, error) {
	var entities []*TemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toTemplateModels(entities), nil
}
