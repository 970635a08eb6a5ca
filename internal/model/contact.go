package model

import "time"

// ContactSource records how a contact entered the system.
type ContactSource string

const (
	ContactSourceManual  ContactSource = "manual"
	ContactSourceInbound ContactSource = "inbound"
)

// Contact is tenant-scoped, unique per (tenant, phone). OptedOut flips
// permanently true on the provider's opt-out rejection code and is never
// automatically reset.
type Contact struct {
	ID            int64         `json:"id"`
	TenantID      int64         `json:"tenant_id"`
	Phone         string        `json:"phone"`
	Name          string        `json:"name,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Source        ContactSource `json:"source"`
	OptedOut      bool          `json:"opted_out"`
	OptedOutAt    *time.Time    `json:"opted_out_at,omitempty"`
	SentCount     int           `json:"sent_count"`
	ReceivedCount int           `json:"received_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ProfileHints are optional fields merged into an existing contact on
// resolution. Empty values never clobber existing data; Tags are unioned
// with the tags the contact already carries.
type ProfileHints struct {
	Name string
	Tags []string
}
