package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

type SendEntity struct {
	ID                int64             `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	TenantID          int64             `db:"tenant_id"           gorm:"column:tenant_id;not null;index"`
	TemplateID        int64             `db:"template_id"         gorm:"column:template_id;not null;index"`
	CampaignID        *int64            `db:"campaign_id"         gorm:"column:campaign_id;index"`
	ChannelID         int64             `db:"channel_id"          gorm:"column:channel_id;not null"`
	Phone             string            `db:"phone"               gorm:"column:phone;not null;index"`
	Variables         map[string]string `db:"variables"           gorm:"column:variables;serializer:json"`
	RenderedBody      string            `db:"rendered_body"       gorm:"column:rendered_body"`
	Status            string            `db:"status"              gorm:"column:status;not null;index"`
	ExternalMessageID string            `db:"external_message_id" gorm:"column:external_message_id;uniqueIndex"`
	ErrorCode         string            `db:"error_code"          gorm:"column:error_code"`
	ErrorMessage      string            `db:"error_message"       gorm:"column:error_message"`
	SentAt            *time.Time        `db:"sent_at"             gorm:"column:sent_at"`
	DeliveredAt       *time.Time        `db:"delivered_at"        gorm:"column:delivered_at"`
	ReadAt            *time.Time        `db:"read_at"             gorm:"column:read_at"`
	CreatedAt         time.Time         `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (SendEntity) TableName() string {
	return "template_sends"
}

func toSendEntity(m *model.TemplateSend) *SendEntity {
	if m == nil {
		return nil
	}
	return &SendEntity{
		ID:                m.ID,
		TenantID:          m.TenantID,
		TemplateID:        m.TemplateID,
		CampaignID:        m.CampaignID,
		ChannelID:         m.ChannelID,
		Phone:             m.Phone,
		Variables:         m.Variables,
		RenderedBody:      m.RenderedBody,
		Status:            string(m.Status),
		ExternalMessageID: m.ExternalMessageID,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		ReadAt:            m.ReadAt,
		CreatedAt:         m.CreatedAt,
	}
}

func toSendModel(e *SendEntity) *model.TemplateSend {
	if e == nil {
		return nil
	}
	return &model.TemplateSend{
		ID:                e.ID,
		TenantID:          e.TenantID,
		TemplateID:        e.TemplateID,
		CampaignID:        e.CampaignID,
		ChannelID:         e.ChannelID,
		Phone:             e.Phone,
		Variables:         e.Variables,
		RenderedBody:      e.RenderedBody,
		Status:            model.SendStatus(e.Status),
		ExternalMessageID: e.ExternalMessageID,
		ErrorCode:         e.ErrorCode,
		ErrorMessage:      e.ErrorMessage,
		SentAt:            e.SentAt,
		DeliveredAt:       e.DeliveredAt,
		ReadAt:            e.ReadAt,
		CreatedAt:         e.CreatedAt,
	}
}

func toSendModels(entities []*SendEntity) []*model.TemplateSend {
	if entities == nil {
		return nil
	}
	models := make([]*model.TemplateSend, len(entities))
	for i, e := range entities {
		models[i] = toSendModel(e)
	}
	return models
}
