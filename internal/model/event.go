package model

import "time"

// DeliveryStatusEvent is an asynchronous status callback from the messaging
// gateway. Events may arrive duplicated and out of order; the reconciler
// only ever moves state forward.
type DeliveryStatusEvent struct {
	ExternalMessageID string     `json:"external_message_id"`
	Status            SendStatus `json:"status"`
	Timestamp         time.Time  `json:"timestamp"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

func (e DeliveryStatusEvent) Validate() bool {
	if e.ExternalMessageID == "" {
		return false
	}
	return e.Status.Rank() >= 0
}

// ButtonClickEvent is an inbound interactive-reply callback.
type ButtonClickEvent struct {
	TenantID    int64     `json:"tenant_id"`
	Phone       string    `json:"phone"`
	ButtonID    string    `json:"button_id,omitempty"`
	ButtonText  string    `json:"button_text"`
	OriginMsgID string    `json:"origin_message_id,omitempty"`
	ReplyMsgID  string    `json:"reply_message_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
