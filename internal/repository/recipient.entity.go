package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

type RecipientEntity struct {
	ID             int64             `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID     int64             `db:"campaign_id"      gorm:"column:campaign_id;not null;uniqueIndex:idx_recipient_campaign_contact;index"`
	ContactID      int64             `db:"contact_id"       gorm:"column:contact_id;not null;uniqueIndex:idx_recipient_campaign_contact"`
	Phone          string            `db:"phone"            gorm:"column:phone;not null"`
	TemplateSendID *int64            `db:"template_send_id" gorm:"column:template_send_id;index"`
	Status         string            `db:"status"           gorm:"column:status;not null;index"`
	SkipReason     *string           `db:"skip_reason"      gorm:"column:skip_reason"`
	ErrorMessage   string            `db:"error_message"    gorm:"column:error_message"`
	Variables      map[string]string `db:"variables"        gorm:"column:variables;serializer:json"`
	ClaimToken     *string           `db:"claim_token"      gorm:"column:claim_token;index"`
	QueuedAt       *time.Time        `db:"queued_at"        gorm:"column:queued_at"`
	SentAt         *time.Time        `db:"sent_at"          gorm:"column:sent_at"`
	DeliveredAt    *time.Time        `db:"delivered_at"     gorm:"column:delivered_at"`
	ReadAt         *time.Time        `db:"read_at"          gorm:"column:read_at"`
}

func (RecipientEntity) TableName() string {
	return "campaign_recipients"
}

func toRecipientEntity(m *model.CampaignRecipient) *RecipientEntity {
	if m == nil {
		return nil
	}
	var reason *string
	if m.SkipReason != nil {
		s := string(*m.SkipReason)
		reason = &s
	}
	return &RecipientEntity{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		ContactID:      m.ContactID,
		Phone:          m.Phone,
		TemplateSendID: m.TemplateSendID,
		Status:         string(m.Status),
		SkipReason:     reason,
		ErrorMessage:   m.ErrorMessage,
		Variables:      m.Variables,
		QueuedAt:       m.QueuedAt,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
}

func toRecipientModel(e *RecipientEntity) *model.CampaignRecipient {
	if e == nil {
		return nil
	}
	var reason *model.SkipReason
	if e.SkipReason != nil {
		s := model.SkipReason(*e.SkipReason)
		reason = &s
	}
	return &model.CampaignRecipient{
		ID:             e.ID,
		CampaignID:     e.CampaignID,
		ContactID:      e.ContactID,
		Phone:          e.Phone,
		TemplateSendID: e.TemplateSendID,
		Status:         model.RecipientStatus(e.Status),
		SkipReason:     reason,
		ErrorMessage:   e.ErrorMessage,
		Variables:      e.Variables,
		QueuedAt:       e.QueuedAt,
		SentAt:         e.SentAt,
		DeliveredAt:    e.DeliveredAt,
		ReadAt:         e.ReadAt,
	}
}

func toRecipientModels(entities []*RecipientEntity) []*model.CampaignRecipient {
	if entities == nil {
		return nil
	}
	models := make([]*model.CampaignRecipient, len(entities))
	for i, e := range entities {
		models[i] = toRecipientModel(e)
	}
	return models
}
