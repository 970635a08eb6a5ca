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

// Provider error code for a user-initiated permanent opt-out. A failed
// event carrying it flips the contact's opted_out flag across every tenant
// sharing the phone number.
const optOutErrorCode = "131050"

type SendRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*model.TemplateSend, error)
	ApplyStatus(ctx context.Context, id int64, status model.SendStatus, at time.Time, errorCode, errorMessage string) (bool, error)
	FindRecentByPhone(ctx context.Context, tenantID int64, phone string, since time.Time, limit int) ([]*model.TemplateSend, error)
}

type DeliveryRepository interface {
	Apply(ctx context.Context, sendID int64, status model.SendStatus, errorCode string) (bool, error)
}

type RecipientRepository interface {
	GetBySendID(ctx context.Context, sendID int64) (*model.CampaignRecipient, error)
	ApplyStatus(ctx context.Context, id int64, status model.RecipientStatus, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error)
}

type CampaignRepository interface {
	AddCounter(ctx context.Context, id int64, field repository.CounterField, delta int) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContactRepository interface {
	GetByPhone(ctx context.Context, tenantID int64, phone string) (*model.Contact, error)
	MarkOptedOut(ctx context.Context, phone string, at time.Time) (int64, error)
	IncrementReceived(ctx context.Context, id int64) error
}

// StatusProcessor reconciles delivery-status callbacks into send, recipient
// and campaign state. Events may be duplicated and out of order; every write
// is a monotonic conditional update, so replaying a stream is harmless.
type StatusProcessor struct {
	sendRepo      SendRepository
	deliveryRepo  DeliveryRepository
	recipientRepo RecipientRepository
	campaignRepo  CampaignRepository
	contactRepo   ContactRepository
	deduper       *Deduper
}

func NewStatusProcessor(
	sendRepo SendRepository,
	deliveryRepo DeliveryRepository,
	recipientRepo RecipientRepository,
	campaignRepo CampaignRepository,
	contactRepo ContactRepository,
	deduper *Deduper,
) *StatusProcessor {
	return &StatusProcessor{
		sendRepo:      sendRepo,
		deliveryRepo:  deliveryRepo,
		recipientRepo: recipientRepo,
		campaignRepo:  campaignRepo,
		contactRepo:   contactRepo,
		deduper:       deduper,
	}
}

func (p *StatusProcessor) GetType() string {
	return "delivery_status"
}

func (p *StatusProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var event model.DeliveryStatusEvent
	if err := json.Unmarshal(queueMessage.Data, &event); err != nil {
		logger.Error("Failed to unmarshal status event", "error", err)
		return err // malformed payload moves to DLQ
	}
	if !event.Validate() {
		logger.Warn("Discarding invalid status event", "external_message_id", event.ExternalMessageID, "status", string(event.Status))
		return nil
	}

	dedupeKey := event.ExternalMessageID + ":" + string(event.Status)
	if p.deduper.Seen(dedupeKey) {
		logger.Debug("Status event already reconciled, skipping", "external_message_id", event.ExternalMessageID, "status", string(event.Status))
		return nil
	}

	if err := p.Apply(ctx, &event); err != nil {
		return err
	}

	p.deduper.Mark(dedupeKey)
	return nil
}

// Apply reconciles one status event. Unknown external ids are logged and
// dropped: they occur for non-campaign or pre-migration messages and must
// not poison the stream.
func (p *StatusProcessor) Apply(ctx context.Context, event *model.DeliveryStatusEvent) error {
	send, err := p.sendRepo.GetByExternalID(ctx, event.ExternalMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrSendNotFound) {
			logger.Info("Status event for unknown message, discarding", "external_message_id", event.ExternalMessageID, "status", string(event.Status))
			prom.IncStatusEvent(string(event.Status), "unknown")
			return nil
		}
		return err
	}

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	// The delivery-state gate, the send stamp, the recipient mirror and the
	// campaign counter commit as one unit. A failure anywhere rolls the gate
	// back too, so a redelivered event retries the whole reconciliation
	// instead of stopping at an already-advanced delivery state.
	var applied bool
	err = p.campaignRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		applied, err = p.deliveryRepo.Apply(ctx, send.ID, event.Status, event.ErrorCode)
		if err != nil || !applied {
			return err
		}
		if _, err = p.sendRepo.ApplyStatus(ctx, send.ID, event.Status, at, event.ErrorCode, event.ErrorMessage); err != nil {
			return err
		}
		return p.mirrorToRecipient(ctx, send, event, at)
	})
	if err != nil {
		return err
	}
	if !applied {
		logger.Debug("Status event would regress, keeping current state",
			"external_message_id", event.ExternalMessageID,
			"send_id", send.ID,
			"event_status", string(event.Status))
		prom.IncStatusEvent(string(event.Status), "regressed")
		return nil
	}

	if event.Status == model.SendStatusFailed && event.ErrorCode == optOutErrorCode {
		flipped, err := p.contactRepo.MarkOptedOut(ctx, send.Phone, at)
		if err != nil {
			logger.Error("Failed to mark contact opted out", "phone", send.Phone, "error", err)
		} else if flipped > 0 {
			logger.Info("Contact opted out", "phone", send.Phone, "contacts_updated", flipped)
		}
	}

	prom.IncStatusEvent(string(event.Status), "applied")
	logger.Debug("Status event applied",
		"external_message_id", event.ExternalMessageID,
		"send_id", send.ID,
		"status", string(event.Status))
	return nil
}

// mirrorToRecipient forwards the send transition to the campaign recipient
// and its aggregate counters. Counter deltas are gated on the recipient
// transition actually applying, so a replayed event can never double count.
func (p *StatusProcessor) mirrorToRecipient(ctx context.Context, send *model.TemplateSend, event *model.DeliveryStatusEvent, at time.Time) error {
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

	var applied bool
	var counter repository.CounterField

	switch event.Status {
	case model.SendStatusDelivered:
		applied, err = p.recipientRepo.ApplyStatus(ctx, recipient.ID, model.RecipientStatusDelivered, at)
		counter = repository.CounterDelivered
	case model.SendStatusRead:
		applied, err = p.recipientRepo.ApplyStatus(ctx, recipient.ID, model.RecipientStatusRead, at)
		counter = repository.CounterRead
	case model.SendStatusFailed:
		applied, err = p.recipientRepo.MarkFailed(ctx, recipient.ID, event.ErrorMessage)
		counter = repository.CounterFailed
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	return p.campaignRepo.AddCounter(ctx, *send.CampaignID, counter, 1)
}
