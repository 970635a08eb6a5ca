package repository

import (
	"time"

	"github.com/waveline/campaign-engine/internal/model"
)

type CampaignEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	TenantID        int64      `db:"tenant_id"        gorm:"column:tenant_id;not null;index"`
	TemplateID      int64      `db:"template_id"      gorm:"column:template_id;not null"`
	ChannelID       int64      `db:"channel_id"       gorm:"column:channel_id;not null"`
	Name            string     `db:"name"             gorm:"column:name"`
	Status          string     `db:"status"           gorm:"column:status;not null;index"`
	TotalRecipients int        `db:"total_recipients" gorm:"column:total_recipients;not null;default:0"`
	SentCount       int        `db:"sent_count"       gorm:"column:sent_count;not null;default:0"`
	DeliveredCount  int        `db:"delivered_count"  gorm:"column:delivered_count;not null;default:0"`
	ReadCount       int        `db:"read_count"       gorm:"column:read_count;not null;default:0"`
	FailedCount     int        `db:"failed_count"     gorm:"column:failed_count;not null;default:0"`
	LastError       string     `db:"last_error"       gorm:"column:last_error"`
	StartedAt       *time.Time `db:"started_at"       gorm:"column:started_at"`
	CompletedAt     *time.Time `db:"completed_at"     gorm:"column:completed_at"`
	PausedAt        *time.Time `db:"paused_at"        gorm:"column:paused_at"`
	CreatedAt       time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`

	Recipients []*RecipientEntity `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
	Triggers   []*TriggerEntity   `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

type TriggerEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID  int64      `db:"campaign_id"  gorm:"column:campaign_id;not null;index"`
	Kind        string     `db:"kind"         gorm:"column:kind;not null"`
	ScheduledAt *time.Time `db:"scheduled_at" gorm:"column:scheduled_at"`
	EventName   string     `db:"event_name"   gorm:"column:event_name"`
	Active      bool       `db:"active"       gorm:"column:active;not null;default:true"`
	FireCount   int        `db:"fire_count"   gorm:"column:fire_count;not null;default:0"`
}

func (TriggerEntity) TableName() string {
	return "campaign_triggers"
}

func toCampaignEntity(m *model.Campaign) *CampaignEntity {
	if m == nil {
		return nil
	}
	return &CampaignEntity{
		ID:              m.ID,
		TenantID:        m.TenantID,
		TemplateID:      m.TemplateID,
		ChannelID:       m.ChannelID,
		Name:            m.Name,
		Status:          string(m.Status),
		TotalRecipients: m.TotalRecipients,
		SentCount:       m.SentCount,
		DeliveredCount:  m.DeliveredCount,
		ReadCount:       m.ReadCount,
		FailedCount:     m.FailedCount,
		LastError:       m.LastError,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		PausedAt:        m.PausedAt,
		CreatedAt:       m.CreatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:              e.ID,
		TenantID:        e.TenantID,
		TemplateID:      e.TemplateID,
		ChannelID:       e.ChannelID,
		Name:            e.Name,
		Status:          model.CampaignStatus(e.Status),
		TotalRecipients: e.TotalRecipients,
		SentCount:       e.SentCount,
		DeliveredCount:  e.DeliveredCount,
		ReadCount:       e.ReadCount,
		FailedCount:     e.FailedCount,
		LastError:       e.LastError,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
		PausedAt:        e.PausedAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toTriggerEntity(m *model.CampaignTrigger) *TriggerEntity {
	if m == nil {
		return nil
	}
	return &TriggerEntity{
		ID:          m.ID,
		CampaignID:  m.CampaignID,
		Kind:        string(m.Kind),
		ScheduledAt: m.ScheduledAt,
		EventName:   m.EventName,
		Active:      m.Active,
		FireCount:   m.FireCount,
	}
}

func toTriggerModel(e *TriggerEntity) *model.CampaignTrigger {
	if e == nil {
		return nil
	}
	return &model.CampaignTrigger{
		ID:          e.ID,
		CampaignID:  e.CampaignID,
		Kind:        model.TriggerKind(e.Kind),
		ScheduledAt: e.ScheduledAt,
		EventName:   e.EventName,
		Active:      e.Active,
		FireCount:   e.FireCount,
	}
}
