package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/pkg/logger"
)

var (
	ErrTemplateNotFound       = errors.New("template not found")
	ErrTemplateNotApproved    = errors.New("template is not approved")
	ErrEmptyRecipientSet      = errors.New("recipient set is empty")
	ErrRecipientLimitExceeded = errors.New("recipient set exceeds the maximum")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrCampaignNotFound       = errors.New("campaign not found")
)

type CreditRepository interface {
	Reserve(ctx context.Context, tenantID int64, amount int64) (int64, error)
	Add(ctx context.Context, tenantID int64, amount int64) (int64, error)
	GetRemaining(ctx context.Context, tenantID int64) (int64, error)
}

type CampaignRepository interface {
	CreateWithRecipients(ctx context.Context, c *model.Campaign, recipients []*model.CampaignRecipient, trigger *model.CampaignTrigger) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	MarkRunning(ctx context.Context, id int64, at time.Time) error
	MarkPaused(ctx context.Context, id int64, at time.Time) error
	MarkResumed(ctx context.Context, id int64) error
	MarkCancelled(ctx context.Context, id int64) error
	FireTrigger(ctx context.Context, campaignID int64) error
	Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus, extra map[string]interface{}) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RecipientRepository interface {
	CancelActive(ctx context.Context, campaignID int64) (int64, error)
	ListByCampaign(ctx context.Context, campaignID int64, limit, offset int) ([]*model.CampaignRecipient, int64, error)
}

type TemplateRepository interface {
	Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error)
}

type SendRepository interface {
	Create(ctx context.Context, s *model.TemplateSend) (*model.TemplateSend, error)
}

type ClickRepository interface {
	CampaignStats(ctx context.Context, campaignID int64) ([]*model.ButtonStats, error)
}

type TemplateGateway interface {
	SendTemplate(ctx context.Context, req *gateways.SendTemplateRequest) (*gateways.SendTemplateResponse, error)
}

// RecipientFailure records one descriptor that could not be resolved during
// campaign admission. Failures are reported to the caller but only abort the
// request when nothing resolves at all.
type RecipientFailure struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

type CampaignService struct {
	campaignRepo  CampaignRepository
	recipientRepo RecipientRepository
	creditRepo    CreditRepository
	templateRepo  TemplateRepository
	sendRepo      SendRepository
	clickRepo     ClickRepository
	contacts      *ContactService
	gateway       TemplateGateway
	maxRecipients int
	sendTimeout   time.Duration
}

func NewCampaignService(
	campaignRepo CampaignRepository,
	recipientRepo RecipientRepository,
	creditRepo CreditRepository,
	templateRepo TemplateRepository,
	sendRepo SendRepository,
	clickRepo ClickRepository,
	contacts *ContactService,
	gateway TemplateGateway,
	maxRecipients int,
	sendTimeout time.Duration,
) *CampaignService {
	return &CampaignService{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		creditRepo:    creditRepo,
		templateRepo:  templateRepo,
		sendRepo:      sendRepo,
		clickRepo:     clickRepo,
		contacts:      contacts,
		gateway:       gateway,
		maxRecipients: maxRecipients,
		sendTimeout:   sendTimeout,
	}
}

// Create admits a campaign: approved template, bounded non-empty recipient
// set, credits reserved for every resolved recipient, and campaign plus
// recipient rows persisted in one transaction. Nothing is persisted when
// the reservation fails. An immediate trigger starts the campaign before
// returning; dispatch itself happens asynchronously.
func (s *CampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, []RecipientFailure, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	if len(req.Spec.Recipients) == 0 {
		return nil, nil, ErrEmptyRecipientSet
	}
	if s.maxRecipients > 0 && len(req.Spec.Recipients) > s.maxRecipients {
		return nil, nil, ErrRecipientLimitExceeded
	}

	tmpl, err := s.templateRepo.Get(ctx, req.TenantID, req.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, nil, ErrTemplateNotFound
		}
		return nil, nil, fmt.Errorf("load template: %w", err)
	}
	if tmpl.Status != model.TemplateStatusApproved {
		return nil, nil, ErrTemplateNotApproved
	}

	recipients, failures := s.resolveRecipients(ctx, req.TenantID, req.Spec)
	if len(recipients) == 0 {
		return nil, failures, ErrEmptyRecipientSet
	}

	campaign := &model.Campaign{
		TenantID:        req.TenantID,
		TemplateID:      req.TemplateID,
		ChannelID:       req.ChannelID,
		Name:            req.Name,
		Status:          model.CampaignStatusDraft,
		TotalRecipients: len(recipients),
	}
	trigger := buildTrigger(req.Schedule)

	// Reservation and persistence share one transaction: a failed
	// materialization rolls the reserved credits back with it.
	var created *model.Campaign
	err = s.campaignRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.creditRepo.Reserve(ctx, req.TenantID, int64(len(recipients))); err != nil {
			if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrTenantNotFound) {
				return ErrInsufficientCredits
			}
			return fmt.Errorf("reserve credits: %w", err)
		}

		c, err := s.campaignRepo.CreateWithRecipients(ctx, campaign, recipients, trigger)
		if err != nil {
			return fmt.Errorf("persist campaign: %w", err)
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, failures, err
	}

	switch trigger.Kind {
	case model.TriggerImmediate:
		if err := s.start(ctx, created.ID); err != nil {
			return nil, failures, err
		}
		created.Status = model.CampaignStatusRunning
	case model.TriggerScheduled:
		if err := s.campaignRepo.Transition(ctx, created.ID, []model.CampaignStatus{model.CampaignStatusDraft}, model.CampaignStatusScheduled, nil); err != nil {
			return nil, failures, err
		}
		created.Status = model.CampaignStatusScheduled
	}

	logger.Info("Campaign created",
		"campaign_id", created.ID,
		"tenant_id", created.TenantID,
		"recipients", len(recipients),
		"resolution_failures", len(failures),
		"trigger", string(trigger.Kind),
		"status", string(created.Status))

	return created, failures, nil
}

// resolveRecipients turns descriptors into pending recipient rows, deduped
// by normalized phone. Opted-out contacts are skipped unless the spec asks
// for them explicitly, and the spec's tag predicate filters on the tags the
// resolved contact carries (descriptor tags included, since resolution
// merges them in).
func (s *CampaignService) resolveRecipients(ctx context.Context, tenantID int64, spec model.RecipientSpec) ([]*model.CampaignRecipient, []RecipientFailure) {
	recipients := make([]*model.CampaignRecipient, 0, len(spec.Recipients))
	var failures []RecipientFailure
	seen := make(map[string]bool, len(spec.Recipients))

	for _, d := range spec.Recipients {
		contact, err := s.contacts.Resolve(ctx, tenantID, d.Phone, model.ProfileHints{Name: d.Name, Tags: d.Tags})
		if err != nil {
			failures = append(failures, RecipientFailure{Phone: d.Phone, Reason: err.Error()})
			continue
		}
		if seen[contact.Phone] {
			continue
		}
		seen[contact.Phone] = true

		if contact.OptedOut && !spec.IncludeOptedOut {
			failures = append(failures, RecipientFailure{Phone: contact.Phone, Reason: "contact opted out"})
			continue
		}

		if tag, excluded := firstMatchingTag(contact.Tags, spec.ExcludeTags); excluded {
			failures = append(failures, RecipientFailure{Phone: contact.Phone, Reason: "excluded by tag " + tag})
			continue
		}
		if len(spec.IncludeTags) > 0 {
			if _, ok := firstMatchingTag(contact.Tags, spec.IncludeTags); !ok {
				failures = append(failures, RecipientFailure{Phone: contact.Phone, Reason: "missing required tag"})
				continue
			}
		}

		recipients = append(recipients, &model.CampaignRecipient{
			ContactID: contact.ID,
			Phone:     contact.Phone,
			Status:    model.RecipientStatusPending,
			Variables: d.Variables,
		})
	}

	return recipients, failures
}

// firstMatchingTag reports the first tag of have that also appears in want.
func firstMatchingTag(have, want []string) (string, bool) {
	if len(want) == 0 {
		return "", false
	}
	wanted := make(map[string]bool, len(want))
	for _, t := range want {
		wanted[t] = true
	}
	for _, t := range have {
		if wanted[t] {
			return t, true
		}
	}
	return "", false
}

func buildTrigger(spec *model.ScheduleSpec) *model.CampaignTrigger {
	if spec == nil {
		return &model.CampaignTrigger{Kind: model.TriggerImmediate, Active: true}
	}
	t := &model.CampaignTrigger{
		Kind:        spec.Kind,
		ScheduledAt: spec.ScheduledAt,
		EventName:   spec.EventName,
		Active:      true,
	}
	if t.Kind == "" {
		t.Kind = model.TriggerImmediate
	}
	return t
}

// start moves a freshly created or due campaign into RUNNING and consumes
// its trigger.
func (s *CampaignService) start(ctx context.Context, campaignID int64) error {
	if err := s.campaignRepo.MarkRunning(ctx, campaignID, time.Now()); err != nil {
		return fmt.Errorf("start campaign %d: %w", campaignID, err)
	}
	if err := s.campaignRepo.FireTrigger(ctx, campaignID); err != nil {
		logger.Warn("Failed to consume campaign trigger", "campaign_id", campaignID, "error", err)
	}
	return nil
}

// Cancel terminates a non-terminal campaign and skips every recipient that
// has not been dispatched yet. Already-dispatched sends keep flowing through
// the reconciler. Spent credits stay spent.
func (s *CampaignService) Cancel(ctx context.Context, tenantID, campaignID int64) error {
	if _, err := s.get(ctx, tenantID, campaignID); err != nil {
		return err
	}

	if err := s.campaignRepo.MarkCancelled(ctx, campaignID); err != nil {
		return err
	}

	skipped, err := s.recipientRepo.CancelActive(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("skip pending recipients: %w", err)
	}

	logger.Info("Campaign cancelled", "campaign_id", campaignID, "recipients_skipped", skipped)
	return nil
}

// Pause halts dispatching for a running campaign. In-flight sends complete.
func (s *CampaignService) Pause(ctx context.Context, tenantID, campaignID int64) error {
	if _, err := s.get(ctx, tenantID, campaignID); err != nil {
		return err
	}
	return s.campaignRepo.MarkPaused(ctx, campaignID, time.Now())
}

// Resume moves a paused campaign back to RUNNING.
func (s *CampaignService) Resume(ctx context.Context, tenantID, campaignID int64) error {
	if _, err := s.get(ctx, tenantID, campaignID); err != nil {
		return err
	}
	return s.campaignRepo.MarkResumed(ctx, campaignID)
}

// Snapshot returns the O(1) progress view backed by the campaign's own
// counters. No recipient rows are scanned.
func (s *CampaignService) Snapshot(ctx context.Context, tenantID, campaignID int64) (*model.CampaignSnapshot, error) {
	c, err := s.get(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	return &model.CampaignSnapshot{
		ID:              c.ID,
		Status:          c.Status,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		DeliveredCount:  c.DeliveredCount,
		ReadCount:       c.ReadCount,
		FailedCount:     c.FailedCount,
		ProgressPercent: model.Progress(c.SentCount+c.FailedCount, c.TotalRecipients),
		LastError:       c.LastError,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
	}, nil
}

// Recipients lists a campaign's recipients with their delivery states.
func (s *CampaignService) Recipients(ctx context.Context, tenantID, campaignID int64, limit, offset int) ([]*model.CampaignRecipient, int64, error) {
	if _, err := s.get(ctx, tenantID, campaignID); err != nil {
		return nil, 0, err
	}
	return s.recipientRepo.ListByCampaign(ctx, campaignID, limit, offset)
}

// Engagement returns per-button click aggregates for a campaign.
func (s *CampaignService) Engagement(ctx context.Context, tenantID, campaignID int64) ([]*model.ButtonStats, error) {
	if _, err := s.get(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}
	return s.clickRepo.CampaignStats(ctx, campaignID)
}

// SendSingle reserves one credit and dispatches a single template message
// outside any campaign, synchronously. A gateway rejection is persisted as
// a failed send; the credit stays spent either way.
func (s *CampaignService) SendSingle(ctx context.Context, req model.SingleSendRequest) (*model.TemplateSend, error) {
	tmpl, err := s.templateRepo.Get(ctx, req.TenantID, req.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tmpl.Status != model.TemplateStatusApproved {
		return nil, ErrTemplateNotApproved
	}

	contact, err := s.contacts.Resolve(ctx, req.TenantID, req.Phone, model.ProfileHints{})
	if err != nil {
		return nil, err
	}

	if _, err := s.creditRepo.Reserve(ctx, req.TenantID, 1); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrTenantNotFound) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("reserve credit: %w", err)
	}

	send := &model.TemplateSend{
		TenantID:     req.TenantID,
		TemplateID:   req.TemplateID,
		ChannelID:    req.ChannelID,
		Phone:        contact.Phone,
		Variables:    req.Variables,
		RenderedBody: RenderTemplate(tmpl.Body, req.Variables),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	resp, err := s.gateway.SendTemplate(sendCtx, &gateways.SendTemplateRequest{
		ChannelID:    fmt.Sprintf("%d", req.ChannelID),
		Phone:        contact.Phone,
		TemplateName: tmpl.Name,
		Language:     tmpl.Language,
		Variables:    req.Variables,
	})
	if err != nil {
		send.Status = model.SendStatusFailed
		send.ErrorMessage = err.Error()
		var sendErr *gateways.SendError
		if errors.As(err, &sendErr) {
			send.ErrorCode = sendErr.Code
			send.ErrorMessage = sendErr.Message
		}
		if created, createErr := s.sendRepo.Create(ctx, send); createErr == nil {
			return created, nil
		}
		return nil, fmt.Errorf("send template: %w", err)
	}

	now := time.Now()
	send.Status = model.SendStatusSent
	send.ExternalMessageID = resp.ExternalMessageID
	send.SentAt = &now

	return s.sendRepo.Create(ctx, send)
}

func (s *CampaignService) get(ctx context.Context, tenantID, campaignID int64) (*model.Campaign, error) {
	c, err := s.campaignRepo.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}
