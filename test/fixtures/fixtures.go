package fixtures

import (
	"github.com/waveline/campaign-engine/internal/model"
)

var (
	TestTemplate = model.MessageTemplate{
		ID:       1,
		TenantID: 1,
		Name:     "order_update",
		Language: "en",
		Body:     "Hi {{1}}, your order {{2}} has shipped",
		Buttons: []model.TemplateButton{
			{ID: "btn_track", Text: "Track order"},
			{ID: "btn_stop", Text: "Stop messages"},
		},
		Status: model.TemplateStatusApproved,
	}

	TestTemplatePlain = model.MessageTemplate{
		ID:       2,
		TenantID: 1,
		Name:     "plain_notice",
		Language: "en",
		Body:     "Your account statement is ready",
		Status:   model.TemplateStatusApproved,
	}

	TestTemplatePending = model.MessageTemplate{
		ID:       3,
		TenantID: 1,
		Name:     "unreviewed",
		Language: "en",
		Body:     "Pending review",
		Status:   model.TemplateStatusPending,
	}
)

var (
	ValidPhoneNumbers = []string{
		"+1234567890",
		"+9876543210",
		"+4412345678",
		"+33123456789",
		"+81312345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"invalid",
		"+",
		"abc123",
	}
)

func NewRecipients(phones ...string) model.RecipientSpec {
	spec := model.RecipientSpec{}
	for _, phone := range phones {
		spec.Recipients = append(spec.Recipients, model.RecipientDescriptor{Phone: phone})
	}
	return spec
}

func CampaignCreateRequest(tenantID, templateID int64, phones ...string) model.CampaignCreateRequest {
	return model.CampaignCreateRequest{
		TenantID:   tenantID,
		TemplateID: templateID,
		ChannelID:  1,
		Name:       "test-campaign",
		Spec:       NewRecipients(phones...),
	}
}

func StatusEvent(externalID string, status model.SendStatus) model.DeliveryStatusEvent {
	return model.DeliveryStatusEvent{
		ExternalMessageID: externalID,
		Status:            status,
	}
}

func ClickEvent(tenantID int64, phone, buttonText, originID string) model.ButtonClickEvent {
	return model.ButtonClickEvent{
		TenantID:    tenantID,
		Phone:       phone,
		ButtonText:  buttonText,
		OriginMsgID: originID,
		ReplyMsgID:  "reply-" + originID,
	}
}
