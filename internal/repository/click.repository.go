package repository

import (
	"context"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/pkg/pg"
)

// ClickRepository is append-only: rows are never updated after creation.
type ClickRepository struct {
	*pg.DB
}

func NewClickRepository(db *pg.DB) *ClickRepository {
	return &ClickRepository{
		db,
	}
}

func (r *ClickRepository) Create(ctx context.Context, c *model.ButtonClick) (*model.ButtonClick, error) {
	entity := toClickEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toClickModel(entity), nil
}

// CampaignStats aggregates attributed clicks per button for one campaign.
// Orphan clicks (no send attribution) never reach campaign analytics.
func (r *ClickRepository) CampaignStats(ctx context.Context, campaignID int64) ([]*model.ButtonStats, error) {
	var stats []*model.ButtonStats
	err := r.Read(ctx).WithContext(ctx).
		Model(&ClickEntity{}).
		Select("button_text, COUNT(*) AS total_clicks, COUNT(DISTINCT contact_id) AS unique_contacts").
		Where("campaign_id = ? AND template_send_id IS NOT NULL", campaignID).
		Group("button_text").
		Order("total_clicks DESC").
		Scan(&stats).
		Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TenantTotal counts every recorded click for the tenant, orphans included.
func (r *ClickRepository) TenantTotal(ctx context.Context, tenantID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ClickEntity{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
