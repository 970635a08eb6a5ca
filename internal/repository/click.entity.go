package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

type ClickEntity struct {
	ID             int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	TenantID       int64     `db:"tenant_id"         gorm:"column:tenant_id;not null;index"`
	TemplateID     *int64    `db:"template_id"       gorm:"column:template_id;index"`
	TemplateSendID *int64    `db:"template_send_id"  gorm:"column:template_send_id;index"`
	CampaignID     *int64    `db:"campaign_id"       gorm:"column:campaign_id;index"`
	RecipientID    *int64    `db:"recipient_id"      gorm:"column:recipient_id"`
	ContactID      *int64    `db:"contact_id"        gorm:"column:contact_id"`
	ButtonID       string    `db:"button_id"         gorm:"column:button_id"`
	ButtonText     string    `db:"button_text"       gorm:"column:button_text;not null"`
	Phone          string    `db:"phone"             gorm:"column:phone;not null"`
	OriginMsgID    string    `db:"origin_message_id" gorm:"column:origin_message_id"`
	ReplyMsgID     string    `db:"reply_message_id"  gorm:"column:reply_message_id"`
	ClickedAt      time.Time `db:"clicked_at"        gorm:"column:clicked_at"`
	CreatedAt      time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (ClickEntity) TableName() string {
	return "button_clicks"
}

func toClickEntity(m *model.ButtonClick) *ClickEntity {
	if m == nil {
		return nil
	}
	return &ClickEntity{
		ID:             m.ID,
		TenantID:       m.TenantID,
		TemplateID:     m.TemplateID,
		TemplateSendID: m.TemplateSendID,
		CampaignID:     m.CampaignID,
		RecipientID:    m.RecipientID,
		ContactID:      m.ContactID,
		ButtonID:       m.ButtonID,
		ButtonText:     m.ButtonText,
		Phone:          m.Phone,
		OriginMsgID:    m.OriginMsgID,
		ReplyMsgID:     m.ReplyMsgID,
		ClickedAt:      m.ClickedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toClickModel(e *ClickEntity) *model.ButtonClick {
	if e == nil {
		return nil
	}
	return &model.ButtonClick{
		ID:             e.ID,
		TenantID:       e.TenantID,
		TemplateID:     e.TemplateID,
		TemplateSendID: e.TemplateSendID,
		CampaignID:     e.CampaignID,
		RecipientID:    e.RecipientID,
		ContactID:      e.ContactID,
		ButtonID:       e.ButtonID,
		ButtonText:     e.ButtonText,
		Phone:          e.Phone,
		OriginMsgID:    e.OriginMsgID,
		ReplyMsgID:     e.ReplyMsgID,
		ClickedAt:      e.ClickedAt,
		CreatedAt:      e.CreatedAt,
	}
}
