package model

import "time"

// RecipientStatus is the per-recipient delivery lifecycle. Transitions are
// monotonic: a recipient only ever moves forward in the ordering
// pending < queued < sent < delivered < read, or terminates early at
// failed/skipped.
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusQueued    RecipientStatus = "queued"
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusRead      RecipientStatus = "read"
	RecipientStatusFailed    RecipientStatus = "failed"
	RecipientStatusSkipped   RecipientStatus = "skipped"
)

// Rank orders the forward lifecycle. Terminal failure states rank above
// everything so they can never be overwritten by a late status event.
func (s RecipientStatus) Rank() int {
	switch s {
	case RecipientStatusPending:
		return 0
	case RecipientStatusQueued:
		return 1
	case RecipientStatusSent:
		return 2
	case RecipientStatusDelivered:
		return 3
	case RecipientStatusRead:
		return 4
	case RecipientStatusFailed, RecipientStatusSkipped:
		return 5
	}
	return -1
}

func (s RecipientStatus) Terminal() bool {
	switch s {
	case RecipientStatusRead, RecipientStatusFailed, RecipientStatusSkipped:
		return true
	}
	return false
}

// SkipReason explains a skipped recipient.
type SkipReason string

const (
	SkipReasonCancelled SkipReason = "cancelled"
	SkipReasonOptedOut  SkipReason = "opted_out"
)

type CampaignRecipient struct {
	ID             int64             `json:"id"`
	CampaignID     int64             `json:"campaign_id"`
	ContactID      int64             `json:"contact_id"`
	Phone          string            `json:"phone"`
	TemplateSendID *int64            `json:"template_send_id,omitempty"`
	Status         RecipientStatus   `json:"status"`
	SkipReason     *SkipReason       `json:"skip_reason,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	QueuedAt       *time.Time        `json:"queued_at,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	ReadAt         *time.Time        `json:"read_at,omitempty"`
}
