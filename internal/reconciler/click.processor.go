package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/prom"
)

// recentSendScan bounds the number of candidate sends examined when a click
// arrives without an origin message id.
const recentSendScan = 5

type ClickRepository interface {
	Create(ctx context.Context, c *model.ButtonClick) (*model.ButtonClick, error)
}

type TemplateRepository interface {
	Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]*model.MessageTemplate, error)
}

// ClickProcessor attributes inbound button clicks to the template send that
// produced them. Attribution is best effort and degrades in steps: exact
// origin-message match, then recent sends to the same phone, then a
// template-only match, then a fully orphaned row. Clicks are append-only
// and never mutate delivery state.
type ClickProcessor struct {
	clickRepo     ClickRepository
	sendRepo      SendRepository
	recipientRepo RecipientRepository
	templateRepo  TemplateRepository
	contactRepo   ContactRepository
	deduper       *Deduper
	window        time.Duration
}

func NewClickProcessor(
	clickRepo ClickRepository,
	sendRepo SendRepository,
	recipientRepo RecipientRepository,
	templateRepo TemplateRepository,
	contactRepo ContactRepository,
	deduper *Deduper,
	window time.Duration,
) *ClickProcessor {
	return &ClickProcessor{
		clickRepo:     clickRepo,
		sendRepo:      sendRepo,
		recipientRepo: recipientRepo,
		templateRepo:  templateRepo,
		contactRepo:   contactRepo,
		deduper:       deduper,
		window:        window,
	}
}

func (p *ClickProcessor) GetType() string {
	return "button_click"
}

func (p *ClickProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var event model.ButtonClickEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal click event", "error", err)
		return err
	}
	if event.TenantID == 0 || event.Phone == "" || event.ButtonText == "" {
		logger.Warn("Discarding invalid click event", "tenant_id", event.TenantID, "phone", event.Phone)
		return nil
	}

	if p.deduper.Seen(event.ReplyMsgID) {
		logger.Debug("Click event already recorded, skipping", "reply_message_id", event.ReplyMsgID)
		return nil
	}

	if err := p.Apply(ctx, &event); err != nil {
		return err
	}

	p.deduper.Mark(event.ReplyMsgID)
	return nil
}

// Apply records one click with the strongest attribution available.
func (p *ClickProcessor) Apply(ctx context.Context, event *model.ButtonClickEvent) error {
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	click := &model.ButtonClick{
		TenantID:    event.TenantID,
		ButtonID:    event.ButtonID,
		ButtonText:  event.ButtonText,
		Phone:       event.Phone,
		OriginMsgID: event.OriginMsgID,
		ReplyMsgID:  event.ReplyMsgID,
		ClickedAt:   at,
	}

	send, err := p.matchSend(ctx, event, at)
	if err != nil {
		return err
	}

	attribution := "orphan"
	if send != nil {
		attribution = "send"
		click.TemplateID = &send.TemplateID
		click.TemplateSendID = &send.ID
		click.CampaignID = send.CampaignID
		if err := p.attachRecipient(ctx, send, click); err != nil {
			return err
		}
	} else if tmplID := p.matchTemplate(ctx, event); tmplID != nil {
		attribution = "template"
		click.TemplateID = tmplID
	}

	if contact, err := p.contactRepo.GetByPhone(ctx, event.TenantID, event.Phone); err == nil {
		click.ContactID = &contact.ID
		if err := p.contactRepo.IncrementReceived(ctx, contact.ID); err != nil {
			logger.Warn("Failed to bump contact received count", "contact_id", contact.ID, "error", err)
		}
	} else if !errors.Is(err, repository.ErrContactNotFound) {
		return err
	}

	if _, err := p.clickRepo.Create(ctx, click); err != nil {
		return err
	}

	prom.IncClick(attribution)
	logger.Debug("Click recorded",
		"tenant_id", event.TenantID,
		"button", event.ButtonText,
		"attribution", attribution)
	return nil
}

// matchSend finds the template send the click replies to: by origin message
// id when the provider echoes one, otherwise the most recent send to the
// same phone within the attribution window whose template carries the
// clicked button.
func (p *ClickProcessor) matchSend(ctx context.Context, event *model.ButtonClickEvent, at time.Time) (*model.TemplateSend, error) {
	if event.OriginMsgID != "" {
		send, err := p.sendRepo.GetByExternalID(ctx, event.OriginMsgID)
		if err == nil {
			if send.TenantID == event.TenantID {
				return send, nil
			}
			logger.Warn("Click origin message belongs to another tenant, ignoring match",
				"origin_message_id", event.OriginMsgID, "tenant_id", event.TenantID)
			return nil, nil
		}
		if !errors.Is(err, repository.ErrSendNotFound) {
			return nil, err
		}
	}

	candidates, err := p.sendRepo.FindRecentByPhone(ctx, event.TenantID, event.Phone, at.Add(-p.window), recentSendScan)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		tmpl, err := p.templateRepo.Get(ctx, candidate.TenantID, candidate.TemplateID)
		if err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				continue
			}
			return nil, err
		}
		if templateHasButton(tmpl, event) {
			return candidate, nil
		}
	}

	return nil, nil
}

// matchTemplate is the weakest attribution: some template of the tenant
// carries the clicked button, but no concrete send could be identified.
func (p *ClickProcessor) matchTemplate(ctx context.Context, event *model.ButtonClickEvent) *int64 {
	templates, err := p.templateRepo.ListByTenant(ctx, event.TenantID)
	if err != nil {
		logger.Warn("Failed to list templates for click fallback", "tenant_id", event.TenantID, "error", err)
		return nil
	}
	for _, tmpl := range templates {
		if templateHasButton(tmpl, event) {
			return &tmpl.ID
		}
	}
	return nil
}

func (p *ClickProcessor) attachRecipient(ctx context.Context, send *model.TemplateSend, click *model.ButtonClick) error {
	if send.CampaignID == nil {
		return nil
	}
	recipient, err := p.recipientRepo.GetBySendID(ctx, send.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			return nil
		}
		return err
	}
	click.RecipientID = &recipient.ID
	if click.ContactID == nil {
		click.ContactID = &recipient.ContactID
	}
	return nil
}

func templateHasButton(tmpl *model.MessageTemplate, event *model.ButtonClickEvent) bool {
	for _, b := range tmpl.Buttons {
		if event.ButtonID != "" && b.ID == event.ButtonID {
			return true
		}
		if b.Text == event.ButtonText {
			return true
		}
	}
	return false
}
