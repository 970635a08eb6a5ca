package model

import "time"

// ButtonClick is one inbound interactive reply attributed (best effort) to
// the template send that produced it. Rows are append-only. A nil
// TemplateSendID marks an orphan attribution: counted in raw engagement
// totals, excluded from per-campaign analytics.
type ButtonClick struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"tenant_id"`
	TemplateID     *int64     `json:"template_id,omitempty"`
	TemplateSendID *int64     `json:"template_send_id,omitempty"`
	CampaignID     *int64     `json:"campaign_id,omitempty"`
	RecipientID    *int64     `json:"recipient_id,omitempty"`
	ContactID      *int64     `json:"contact_id,omitempty"`
	ButtonID       string     `json:"button_id,omitempty"`
	ButtonText     string     `json:"button_text"`
	Phone          string     `json:"phone"`
	OriginMsgID    string     `json:"origin_message_id,omitempty"`
	ReplyMsgID     string     `json:"reply_message_id,omitempty"`
	ClickedAt      time.Time  `json:"clicked_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ButtonStats is the per-button engagement aggregate for one campaign.
type ButtonStats struct {
	ButtonText     string `json:"button_text"`
	TotalClicks    int64  `json:"total_clicks"`
	UniqueContacts int64  `json:"unique_contacts"`
}
