package model

import "time"

// TriggerKind selects when a campaign starts sending.
type TriggerKind string

const (
	TriggerImmediate TriggerKind = "immediate"
	TriggerScheduled TriggerKind = "scheduled"
	TriggerEvent     TriggerKind = "event"
)

// CampaignTrigger starts a campaign. Immediate triggers fire exactly once;
// event triggers may fire repeatedly, tracked by FireCount.
type CampaignTrigger struct {
	ID          int64       `json:"id"`
	CampaignID  int64       `json:"campaign_id"`
	Kind        TriggerKind `json:"kind"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty"`
	EventName   string      `json:"event_name,omitempty"`
	Active      bool        `json:"active"`
	FireCount   int         `json:"fire_count"`
}

// ScheduleSpec is the schedule part of a campaign-create request. A nil spec
// defaults to an immediate trigger.
type ScheduleSpec struct {
	Kind        TriggerKind `json:"kind"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty"`
	EventName   string      `json:"event_name,omitempty"`
}
