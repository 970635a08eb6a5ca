package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

type ContactEntity struct {
	ID            int64      `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TenantID      int64      `db:"tenant_id"      gorm:"column:tenant_id;not null;uniqueIndex:idx_contact_tenant_phone"`
	Phone         string     `db:"phone"          gorm:"column:phone;not null;uniqueIndex:idx_contact_tenant_phone;index"`
	Name          string     `db:"name"           gorm:"column:name"`
	Tags          []string   `db:"tags"           gorm:"column:tags;serializer:json"`
	Source        string     `db:"source"         gorm:"column:source;not null;default:manual"`
	OptedOut      bool       `db:"opted_out"      gorm:"column:opted_out;not null;default:false"`
	OptedOutAt    *time.Time `db:"opted_out_at"   gorm:"column:opted_out_at"`
	SentCount     int        `db:"sent_count"     gorm:"column:sent_count;not null;default:0"`
	ReceivedCount int        `db:"received_count" gorm:"column:received_count;not null;default:0"`
	CreatedAt     time.Time  `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (ContactEntity) TableName() string {
	return "contacts"
}

func toContactEntity(m *model.Contact) *ContactEntity {
	if m == nil {
		return nil
	}
	return &ContactEntity{
		ID:            m.ID,
		TenantID:      m.TenantID,
		Phone:         m.Phone,
		Name:          m.Name,
		Tags:          m.Tags,
		Source:        string(m.Source),
		OptedOut:      m.OptedOut,
		OptedOutAt:    m.OptedOutAt,
		SentCount:     m.SentCount,
		ReceivedCount: m.ReceivedCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	return &model.Contact{
		ID:            e.ID,
		TenantID:      e.TenantID,
		Phone:         e.Phone,
		Name:          e.Name,
		Tags:          e.Tags,
		Source:        model.ContactSource(e.Source),
		OptedOut:      e.OptedOut,
		OptedOutAt:    e.OptedOutAt,
		SentCount:     e.SentCount,
		ReceivedCount: e.ReceivedCount,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
