package repository

import (
	"github.com/waveline/campaign-engine/internal/model"
)

type TemplateEntity struct {
	ID       int64                  `db:"id"        gorm:"primaryKey;autoIncrement;column:id"`
	TenantID int64                  `db:"tenant_id" gorm:"column:tenant_id;not null;index"`
	Name     string                 `db:"name"      gorm:"column:name;not null"`
	Language string                 `db:"language"  gorm:"column:language;not null;default:en"`
	Body     string                 `db:"body"      gorm:"column:body;not null"`
	Buttons  []model.TemplateButton `db:"buttons"   gorm:"column:buttons;serializer:json"`
	Status   string                 `db:"status"    gorm:"column:status;not null;index"`
}

func (TemplateEntity) TableName() string {
	return "templates"
}

func toTemplateModel(e *TemplateEntity) *model.MessageTemplate {
	if e == nil {
		return nil
	}
	return &model.MessageTemplate{
		ID:       e.ID,
		TenantID: e.TenantID,
		Name:     e.Name,
		Language: e.Language,
		Body:     e.Body,
		Buttons:  e.Buttons,
		Status:   model.TemplateStatus(e.Status),
	}
}

func toTemplateModels(entities []*TemplateEntity) []*model.MessageTemplate {
	if entities == nil {
		return nil
	}
	models := make([]*model.MessageTemplate, len(entities))
	for i, e := range entities {
		models[i] = toTemplateModel(e)
	}
	return models
}
