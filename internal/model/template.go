package model

// TemplateStatus is the provider review state of a message template. Only
// approved templates may be sent.
type TemplateStatus string

const (
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusRejected TemplateStatus = "rejected"
)

// TemplateButton is one interactive button configured on a template.
type TemplateButton struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MessageTemplate is a provider-reviewed message skeleton with positional
// variables ({{1}}, {{2}}, ...). Creation and approval happen outside this
// engine; it only reads templates.
type MessageTemplate struct {
	ID       int64            `json:"id"`
	TenantID int64            `json:"tenant_id"`
	Name     string           `json:"name"`
	Language string           `json:"language"`
	Body     string           `json:"body"`
	Buttons  []TemplateButton `json:"buttons,omitempty"`
	Status   TemplateStatus   `json:"status"`
}
