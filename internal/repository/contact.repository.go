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
	ErrContactNotFound = errors.New("contact not found")
)

type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{
		db,
	}
}

// Upsert creates or updates the contact keyed by (tenant_id, phone). Empty
// hint fields never clobber existing data and tags are unioned, never
// replaced. Idempotent: two calls with the same input yield the same row.
func (r *ContactRepository) Upsert(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	var entity *ContactEntity

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var existing ContactEntity
		err := r.Write(ctx).WithContext(ctx).
			Where("tenant_id = ? AND phone = ?", c.TenantID, c.Phone).
			First(&existing).
			Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			entity = toContactEntity(c)
			entity.ID = 0
			if entity.Source == "" {
				entity.Source = string(model.ContactSourceManual)
			}
			return r.Write(ctx).WithContext(ctx).Create(entity).Error
		}
		if err != nil {
			return err
		}

		changed := false
		if c.Name != "" && c.Name != existing.Name {
			existing.Name = c.Name
			changed = true
		}
		if merged := unionTags(existing.Tags, c.Tags); len(merged) != len(existing.Tags) {
			existing.Tags = merged
			changed = true
		}
		if changed {
			if err := r.Write(ctx).WithContext(ctx).Save(&existing).Error; err != nil {
				return err
			}
		}

		entity = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toContactModel(entity), nil
}

// unionTags appends the tags from add that existing does not already carry,
// preserving order. Returns existing untouched when nothing is new.
func unionTags(existing, add []string) []string {
	if len(add) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	merged := existing
	for _, t := range add {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	return toContactModel(&entity), nil
}

func (r *ContactRepository) GetByPhone(ctx context.Context, tenantID int64, phone string) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	return toContactModel(&entity), nil
}

// MarkOptedOut flips opted_out for every tenant sharing the phone number.
// Setting true on an already-true contact is a no-op, so replayed failure
// events are harmless.
func (r *ContactRepository) MarkOptedOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("phone = ? AND opted_out = ?", phone, false).
		Updates(map[string]interface{}{
			"opted_out":    true,
			"opted_out_at": at,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// IncrementSent bumps the contact's outbound counter.
func (r *ContactRepository) IncrementSent(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ?", id).
		Update("sent_count", gorm.Expr("sent_count + 1")).
		Error
}

// IncrementReceived bumps the contact's inbound counter.
func (r *ContactRepository) IncrementReceived(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&ContactEntity{}).
		Where("id = ?", id).
		Update("received_count", gorm.Expr("received_count + 1")).
		Error
}
