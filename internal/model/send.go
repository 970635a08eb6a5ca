package model

import "time"

// SendStatus is the delivery lifecycle of one outbound template message.
type SendStatus string

const (
	SendStatusSent      SendStatus = "sent"
	SendStatusDelivered SendStatus = "delivered"
	SendStatusRead      SendStatus = "read"
	SendStatusFailed    SendStatus = "failed"
)

// Rank orders sent < delivered < read; failed is terminal and overrides any
// prior non-terminal status.
func (s SendStatus) Rank() int {
	switch s {
	case SendStatusSent:
		return 0
	case SendStatusDelivered:
		return 1
	case SendStatusRead:
		return 2
	case SendStatusFailed:
		return 3
	}
	return -1
}

// TemplateSend is one accepted outbound attempt. Retried sends create a new
// row rather than mutating history.
type TemplateSend struct {
	ID                int64             `json:"id"`
	TenantID          int64             `json:"tenant_id"`
	TemplateID        int64             `json:"template_id"`
	CampaignID        *int64            `json:"campaign_id,omitempty"`
	ChannelID         int64             `json:"channel_id"`
	Phone             string            `json:"phone"`
	Variables         map[string]string `json:"variables,omitempty"`
	RenderedBody      string            `json:"rendered_body,omitempty"`
	Status            SendStatus        `json:"status"`
	ExternalMessageID string            `json:"external_message_id,omitempty"`
	ErrorCode         string            `json:"error_code,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	ReadAt            *time.Time        `json:"read_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

type SingleSendRequest struct {
	TenantID   int64
	TemplateID int64
	ChannelID  int64
	Phone      string
	Variables  map[string]string
}
