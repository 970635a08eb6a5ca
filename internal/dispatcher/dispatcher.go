package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/internal/services"
	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/prom"
)

type CampaignRepository interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	RunningIDs(ctx context.Context) ([]int64, error)
	DueScheduled(ctx context.Context, now time.Time) ([]int64, error)
	MarkRunning(ctx context.Context, id int64, at time.Time) error
	MarkCompleted(ctx context.Context, id int64, at time.Time) error
	FireTrigger(ctx context.Context, campaignID int64) error
	AddCounter(ctx context.Context, id int64, field repository.CounterField, delta int) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RecipientRepository interface {
	ClaimBatch(ctx context.Context, campaignID int64, limit int, token string, at time.Time) ([]*model.CampaignRecipient, error)
	MarkSent(ctx context.Context, id int64, sendID int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error)
	CountActive(ctx context.Context, campaignID int64) (int64, error)
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type TemplateRepository interface {
	Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error)
}

type SendRepository interface {
	Create(ctx context.Context, s *model.TemplateSend) (*model.TemplateSend, error)
}

type ContactRepository interface {
	IncrementSent(ctx context.Context, id int64) error
}

type Gateway interface {
	SendTemplate(ctx context.Context, req *gateways.SendTemplateRequest) (*gateways.SendTemplateResponse, error)
}

type Config struct {
	BatchSize        int
	PollInterval     time.Duration
	BatchDelay       time.Duration
	SendTimeout      time.Duration
	StaleQueuedAfter time.Duration
}

// Dispatcher drains RUNNING campaigns in rate-limited batches. Multiple
// dispatcher processes may run concurrently: a recipient can only be claimed
// by the one pass that wins the PENDING to QUEUED update, so there is no
// instance-level coordination.
type Dispatcher struct {
	campaignRepo  CampaignRepository
	recipientRepo RecipientRepository
	templateRepo  TemplateRepository
	sendRepo      SendRepository
	contactRepo   ContactRepository
	gateway       Gateway
	config        Config
	metrics       *DispatchMetrics
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

func NewDispatcher(
	campaignRepo CampaignRepository,
	recipientRepo RecipientRepository,
	templateRepo TemplateRepository,
	sendRepo SendRepository,
	contactRepo ContactRepository,
	gateway Gateway,
	config Config,
) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		templateRepo:  templateRepo,
		sendRepo:      sendRepo,
		contactRepo:   contactRepo,
		gateway:       gateway,
		config:        config,
		metrics:       NewDispatchMetrics(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (d *Dispatcher) Start() error {
	if d.config.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if d.config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	d.wg.Add(2)
	go d.run()
	go d.metricsReporter()

	logger.Info("Dispatcher started",
		"batch_size", d.config.BatchSize,
		"poll_interval", d.config.PollInterval,
		"batch_delay", d.config.BatchDelay)
	return nil
}

// Stop drains the current tick and shuts down. A kill mid-batch is safe:
// claimed-but-unsent recipients are returned to PENDING by the stale sweep.
func (d *Dispatcher) Stop() {
	logger.Info("Shutting down dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.reportMetrics()
	logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.Tick(d.ctx)
	for {
		select {
		case <-ticker.C:
			d.Tick(d.ctx)
		case <-d.ctx.Done():
			return
		}
	}
}

// Tick runs one full dispatcher pass: fire due scheduled campaigns, requeue
// stale claims, then drain every RUNNING campaign.
func (d *Dispatcher) Tick(ctx context.Context) {
	d.fireDueCampaigns(ctx)
	d.requeueStale(ctx)

	ids, err := d.campaignRepo.RunningIDs(ctx)
	if err != nil {
		logger.Error("Failed to list running campaigns", "error", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		d.dispatchCampaign(ctx, id)
	}
}

// fireDueCampaigns starts SCHEDULED campaigns whose trigger has come due.
// MarkRunning is conditional, so two dispatcher instances firing the same
// campaign results in one winner and one invalid-transition no-op.
func (d *Dispatcher) fireDueCampaigns(ctx context.Context) {
	ids, err := d.campaignRepo.DueScheduled(ctx, time.Now())
	if err != nil {
		logger.Error("Failed to list due campaigns", "error", err)
		return
	}

	for _, id := range ids {
		if err := d.campaignRepo.MarkRunning(ctx, id, time.Now()); err != nil {
			if !errors.Is(err, repository.ErrInvalidTransition) {
				logger.Error("Failed to start scheduled campaign", "campaign_id", id, "error", err)
			}
			continue
		}
		if err := d.campaignRepo.FireTrigger(ctx, id); err != nil {
			logger.Warn("Failed to consume campaign trigger", "campaign_id", id, "error", err)
		}
		prom.IncCampaignTransition(string(model.CampaignStatusRunning))
		logger.Info("Scheduled campaign started", "campaign_id", id)
	}
}

func (d *Dispatcher) requeueStale(ctx context.Context) {
	if d.config.StaleQueuedAfter <= 0 {
		return
	}
	n, err := d.recipientRepo.RequeueStale(ctx, time.Now().Add(-d.config.StaleQueuedAfter))
	if err != nil {
		logger.Error("Failed to requeue stale recipients", "error", err)
		return
	}
	if n > 0 {
		logger.Warn("Requeued stale claimed recipients", "count", n)
	}
}

func (d *Dispatcher) dispatchCampaign(ctx context.Context, campaignID int64) {
	campaign, err := d.campaignRepo.Get(ctx, campaignID)
	if err != nil {
		logger.Error("Failed to load campaign", "campaign_id", campaignID, "error", err)
		return
	}
	if campaign.Status != model.CampaignStatusRunning {
		return
	}

	tmpl, err := d.templateRepo.Get(ctx, campaign.TenantID, campaign.TemplateID)
	if err != nil {
		logger.Error("Failed to load campaign template", "campaign_id", campaignID, "template_id", campaign.TemplateID, "error", err)
		return
	}

	for {
		token := uuid.NewString()
		batch, err := d.recipientRepo.ClaimBatch(ctx, campaignID, d.config.BatchSize, token, time.Now())
		if err != nil {
			logger.Error("Failed to claim recipient batch", "campaign_id", campaignID, "error", err)
			return
		}

		if len(batch) == 0 {
			d.maybeComplete(ctx, campaignID)
			return
		}

		for _, recipient := range batch {
			if ctx.Err() != nil {
				return
			}
			d.sendRecipient(ctx, campaign, tmpl, recipient)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.config.BatchDelay):
		}

		// A pause or cancel between batches must stop the drain.
		campaign, err = d.campaignRepo.Get(ctx, campaignID)
		if err != nil || campaign.Status != model.CampaignStatusRunning {
			return
		}
	}
}

// maybeComplete closes a RUNNING campaign once no PENDING or QUEUED
// recipients remain.
func (d *Dispatcher) maybeComplete(ctx context.Context, campaignID int64) {
	active, err := d.recipientRepo.CountActive(ctx, campaignID)
	if err != nil {
		logger.Error("Failed to count active recipients", "campaign_id", campaignID, "error", err)
		return
	}
	if active > 0 {
		return
	}

	if err := d.campaignRepo.MarkCompleted(ctx, campaignID, time.Now()); err != nil {
		if !errors.Is(err, repository.ErrInvalidTransition) {
			logger.Error("Failed to complete campaign", "campaign_id", campaignID, "error", err)
		}
		return
	}
	prom.IncCampaignTransition(string(model.CampaignStatusCompleted))
	logger.Info("Campaign completed", "campaign_id", campaignID)
}

// sendRecipient performs one outbound send. A failure marks only this
// recipient FAILED; the batch and the campaign keep going, and the reserved
// credit stays spent.
func (d *Dispatcher) sendRecipient(ctx context.Context, campaign *model.Campaign, tmpl *model.MessageTemplate, recipient *model.CampaignRecipient) {
	start := time.Now()

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	resp, err := d.gateway.SendTemplate(sendCtx, &gateways.SendTemplateRequest{
		ChannelID:    fmt.Sprintf("%d", campaign.ChannelID),
		Phone:        recipient.Phone,
		TemplateName: tmpl.Name,
		Language:     tmpl.Language,
		Variables:    recipient.Variables,
	})
	elapsed := time.Since(start)

	if err != nil {
		d.failRecipient(ctx, campaign, recipient, err)
		prom.ObserveDispatchSendDuration(elapsed.Seconds(), "failed")
		return
	}

	now := time.Now()
	send, err := d.sendRepo.Create(ctx, &model.TemplateSend{
		TenantID:          campaign.TenantID,
		TemplateID:        campaign.TemplateID,
		CampaignID:        &campaign.ID,
		ChannelID:         campaign.ChannelID,
		Phone:             recipient.Phone,
		Variables:         recipient.Variables,
		RenderedBody:      services.RenderTemplate(tmpl.Body, recipient.Variables),
		Status:            model.SendStatusSent,
		ExternalMessageID: resp.ExternalMessageID,
		SentAt:            &now,
	})
	if err != nil {
		d.failRecipient(ctx, campaign, recipient, fmt.Errorf("persist send: %w", err))
		prom.ObserveDispatchSendDuration(elapsed.Seconds(), "failed")
		return
	}

	// The recipient transition and the campaign counter commit together;
	// a counter failure rolls the transition back and the stale sweep
	// returns the recipient to PENDING.
	err = d.campaignRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := d.recipientRepo.MarkSent(ctx, recipient.ID, send.ID, now); err != nil {
			return err
		}
		return d.campaignRepo.AddCounter(ctx, campaign.ID, repository.CounterSent, 1)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			// The recipient left QUEUED while we were sending (cancel or stale
			// sweep). The send row stands; status events will still reconcile it.
			logger.Warn("Recipient no longer claimable after send", "recipient_id", recipient.ID, "send_id", send.ID, "error", err)
		} else {
			logger.Error("Failed to record dispatched recipient", "recipient_id", recipient.ID, "send_id", send.ID, "error", err)
		}
		return
	}

	if err := d.contactRepo.IncrementSent(ctx, recipient.ContactID); err != nil {
		logger.Warn("Failed to bump contact sent count", "contact_id", recipient.ContactID, "error", err)
	}

	d.metrics.RecordSent(elapsed)
	prom.IncDispatchSend("sent")
	prom.ObserveDispatchSendDuration(elapsed.Seconds(), "sent")

	logger.Debug("Recipient dispatched",
		"campaign_id", campaign.ID,
		"recipient_id", recipient.ID,
		"external_message_id", resp.ExternalMessageID,
		"latency_ms", elapsed.Milliseconds())
}

func (d *Dispatcher) failRecipient(ctx context.Context, campaign *model.Campaign, recipient *model.CampaignRecipient, sendErr error) {
	msg := sendErr.Error()
	var gwErr *gateways.SendError
	if errors.As(sendErr, &gwErr) {
		msg = fmt.Sprintf("%s (%s)", gwErr.Message, gwErr.Code)
	}

	err := d.campaignRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		applied, err := d.recipientRepo.MarkFailed(ctx, recipient.ID, msg)
		if err != nil || !applied {
			return err
		}
		return d.campaignRepo.AddCounter(ctx, campaign.ID, repository.CounterFailed, 1)
	})
	if err != nil {
		logger.Error("Failed to mark recipient failed", "recipient_id", recipient.ID, "error", err)
		return
	}

	d.metrics.RecordFailed()
	prom.IncDispatchSend("failed")

	logger.Warn("Recipient send failed",
		"campaign_id", campaign.ID,
		"recipient_id", recipient.ID,
		"error", msg)
}

func (d *Dispatcher) metricsReporter() {
	defer d.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.reportMetrics()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) reportMetrics() {
	stats := d.metrics.GetStats()
	logger.Info("Dispatcher metrics",
		"total_sent", stats["total_sent"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_send_ms", stats["avg_send_ms"],
		"uptime_seconds", stats["uptime_seconds"])
}
