package model

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	}
	return false
}

type Campaign struct {
	ID              int64          `json:"id"`
	TenantID        int64          `json:"tenant_id"`
	TemplateID      int64          `json:"template_id"`
	ChannelID       int64          `json:"channel_id"`
	Name            string         `json:"name"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	DeliveredCount  int            `json:"delivered_count"`
	ReadCount       int            `json:"read_count"`
	FailedCount     int            `json:"failed_count"`
	LastError       string         `json:"last_error,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	PausedAt        *time.Time     `json:"paused_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// RecipientSpec is the declarative recipient predicate of a create request.
// Descriptors name the candidate phones; IncludeTags keeps only contacts
// carrying at least one of the listed tags, and ExcludeTags drops any
// contact carrying one of its tags. Exclusion wins over inclusion.
// Opted-out contacts are always excluded unless IncludeOptedOut is set.
type RecipientSpec struct {
	Recipients      []RecipientDescriptor `json:"recipients"`
	IncludeTags     []string              `json:"include_tags,omitempty"`
	ExcludeTags     []string              `json:"exclude_tags,omitempty"`
	IncludeOptedOut bool                  `json:"include_opted_out,omitempty"`
}

// RecipientDescriptor is one inbound recipient: a raw phone plus optional
// profile hints and per-recipient template variable bindings.
type RecipientDescriptor struct {
	Phone     string            `json:"phone"`
	Name      string            `json:"name,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

type CampaignCreateRequest struct {
	TenantID   int64
	TemplateID int64
	ChannelID  int64
	Name       string
	Spec       RecipientSpec
	Schedule   *ScheduleSpec
}

func (r CampaignCreateRequest) Validate() error {
	if r.TenantID == 0 {
		return errors.New("tenant_id is required")
	}
	if r.TemplateID == 0 {
		return errors.New("template_id is required")
	}
	if r.ChannelID == 0 {
		return errors.New("channel_id is required")
	}
	return nil
}

// CampaignSnapshot is the O(1) status view served to pollers. Counters are
// maintained transactionally with each recipient transition, never derived
// by scanning recipients.
type CampaignSnapshot struct {
	ID              int64          `json:"id"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	DeliveredCount  int            `json:"delivered_count"`
	ReadCount       int            `json:"read_count"`
	FailedCount     int            `json:"failed_count"`
	ProgressPercent int            `json:"progress_percent"`
	LastError       string         `json:"last_error,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Progress returns round(sent/total*100), 0 for an empty campaign.
func Progress(sent, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(sent)/float64(total)*100 + 0.5)
}
