package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/dispatcher"
	"github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/internal/reconciler"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/internal/services"
	"github.com/waveline/campaign-engine/pkg/pg"
	"github.com/waveline/campaign-engine/test/fixtures"
	"github.com/waveline/campaign-engine/test/helpers"
)

// stubGateway accepts every send and allocates sequential external ids. A
// phone listed in rejectPhones is rejected with the configured code instead.
type stubGateway struct {
	mu           sync.Mutex
	nextID       int
	rejectPhones map[string]string
	sent         []string
}

func newStubGateway() *stubGateway {
	return &stubGateway{rejectPhones: make(map[string]string)}
}

func (g *stubGateway) SendTemplate(ctx context.Context, req *gateways.SendTemplateRequest) (*gateways.SendTemplateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if code, ok := g.rejectPhones[req.Phone]; ok {
		return nil, &gateways.SendError{Code: code, Message: "rejected by provider"}
	}

	g.nextID++
	externalID := fmt.Sprintf("wamid.e2e-%d", g.nextID)
	g.sent = append(g.sent, req.Phone)
	return &gateways.SendTemplateResponse{
		ExternalMessageID: externalID,
		Status:            gateways.SendAccepted,
		AcceptedAt:        time.Now(),
	}, nil
}

type testEnv struct {
	db              *pg.DB
	campaignRepo    *repository.CampaignRepository
	recipientRepo   *repository.RecipientRepository
	creditRepo      *repository.CreditRepository
	templateRepo    *repository.TemplateRepository
	sendRepo        *repository.SendRepository
	deliveryRepo    *repository.DeliveryRepository
	clickRepo       *repository.ClickRepository
	contactRepo     *repository.ContactRepository
	gateway         *stubGateway
	campaignService *services.CampaignService
	dispatcher      *dispatcher.Dispatcher
	statusProcessor *reconciler.StatusProcessor
	clickProcessor  *reconciler.ClickProcessor
}

func setupEnv(t *testing.T) *testEnv {
	db := helpers.SetupTestDB(t)
	gw := newStubGateway()

	env := &testEnv{
		db:            db,
		campaignRepo:  repository.NewCampaignRepository(db),
		recipientRepo: repository.NewRecipientRepository(db),
		creditRepo:    repository.NewCreditRepository(db),
		templateRepo:  repository.NewTemplateRepository(db),
		sendRepo:      repository.NewSendRepository(db),
		deliveryRepo:  repository.NewDeliveryRepository(db),
		clickRepo:     repository.NewClickRepository(db),
		contactRepo:   repository.NewContactRepository(db),
		gateway:       gw,
	}

	contactService := services.NewContactService(env.contactRepo)
	env.campaignService = services.NewCampaignService(
		env.campaignRepo,
		env.recipientRepo,
		env.creditRepo,
		env.templateRepo,
		env.sendRepo,
		env.clickRepo,
		contactService,
		gw,
		100,
		time.Second,
	)

	env.dispatcher = dispatcher.NewDispatcher(
		env.campaignRepo,
		env.recipientRepo,
		env.templateRepo,
		env.sendRepo,
		env.contactRepo,
		gw,
		dispatcher.Config{
			BatchSize:    10,
			PollInterval: time.Minute,
			BatchDelay:   time.Millisecond,
			SendTimeout:  time.Second,
		},
	)

	env.statusProcessor = reconciler.NewStatusProcessor(
		env.sendRepo, env.deliveryRepo, env.recipientRepo, env.campaignRepo, env.contactRepo, nil)
	env.clickProcessor = reconciler.NewClickProcessor(
		env.clickRepo, env.sendRepo, env.recipientRepo, env.templateRepo, env.contactRepo, nil, 168*time.Hour)

	return env
}

func TestCampaignFlow_CreateDispatchReconcile(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	helpers.CreateTestCredit(t, env.db, 1, 10)
	tmpl := helpers.CreateTestTemplate(t, env.db, 1, "order_update", "Hi {{1}}, your order shipped",
		model.TemplateButton{ID: "btn_track", Text: "Track order"})

	campaign, skipped, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001", "+15550000002", "+15550000003"))
	require.NoError(t, err)
	require.Empty(t, skipped)
	assert.Equal(t, model.CampaignStatusRunning, campaign.Status)
	assert.Equal(t, 3, campaign.TotalRecipients)

	remaining, err := env.creditRepo.GetRemaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), remaining)

	// Drain the campaign.
	env.dispatcher.Tick(ctx)

	final, err := env.campaignRepo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 3, final.SentCount)
	assert.Len(t, env.gateway.sent, 3)

	// Delivery callbacks for the first send, with the delivered event
	// replayed: counters must move exactly once.
	send, err := env.sendRepo.GetByExternalID(ctx, "wamid.e2e-1")
	require.NoError(t, err)

	delivered := fixtures.StatusEvent(send.ExternalMessageID, model.SendStatusDelivered)
	require.NoError(t, env.statusProcessor.Apply(ctx, &delivered))
	require.NoError(t, env.statusProcessor.Apply(ctx, &delivered))

	read := fixtures.StatusEvent(send.ExternalMessageID, model.SendStatusRead)
	require.NoError(t, env.statusProcessor.Apply(ctx, &read))

	final, err = env.campaignRepo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.DeliveredCount)
	assert.Equal(t, 1, final.ReadCount)

	// A click replying to that message attributes all the way down to the
	// recipient.
	click := fixtures.ClickEvent(1, send.Phone, "Track order", send.ExternalMessageID)
	require.NoError(t, env.clickProcessor.Apply(ctx, &click))

	stats, err := env.clickRepo.CampaignStats(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Track order", stats[0].ButtonText)
	assert.Equal(t, int64(1), stats[0].TotalClicks)
}

func TestCampaignFlow_PartialFailureKeepsCreditsSpent(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	helpers.CreateTestCredit(t, env.db, 1, 5)
	tmpl := helpers.CreateTestTemplate(t, env.db, 1, "order_update", "Hi {{1}}")
	env.gateway.rejectPhones["+15550000002"] = "131026"

	campaign, _, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001", "+15550000002"))
	require.NoError(t, err)

	env.dispatcher.Tick(ctx)

	final, err := env.campaignRepo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 1, final.SentCount)
	assert.Equal(t, 1, final.FailedCount)

	// Failed sends do not refund.
	remaining, err := env.creditRepo.GetRemaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
}

func TestCampaignFlow_InsufficientCreditsPersistsNothing(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	helpers.CreateTestCredit(t, env.db, 1, 1)
	tmpl := helpers.CreateTestTemplate(t, env.db, 1, "order_update", "Hi {{1}}")

	_, _, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001", "+15550000002"))
	require.ErrorIs(t, err, services.ErrInsufficientCredits)

	remaining, err := env.creditRepo.GetRemaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	ids, err := env.campaignRepo.RunningIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCampaignFlow_OptOutEventSuppressesFutureCampaigns(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	helpers.CreateTestCredit(t, env.db, 1, 10)
	tmpl := helpers.CreateTestTemplate(t, env.db, 1, "order_update", "Hi {{1}}")

	campaign, _, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001"))
	require.NoError(t, err)
	env.dispatcher.Tick(ctx)

	send, err := env.sendRepo.GetByExternalID(ctx, "wamid.e2e-1")
	require.NoError(t, err)

	// Provider reports a user-initiated opt-out.
	event := model.DeliveryStatusEvent{
		ExternalMessageID: send.ExternalMessageID,
		Status:            model.SendStatusFailed,
		ErrorCode:         "131050",
		ErrorMessage:      "user has opted out",
		Timestamp:         time.Now(),
	}
	require.NoError(t, env.statusProcessor.Apply(ctx, &event))

	contact, err := env.contactRepo.GetByPhone(ctx, 1, "+15550000001")
	require.NoError(t, err)
	assert.True(t, contact.OptedOut)

	// The next campaign targeting the same phone skips it.
	_, skipped, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001", "+15550000002"))
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "+15550000001", skipped[0].Phone)

	_ = campaign
}

func TestCampaignFlow_EventStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	mr, adapter := helpers.SetupTestRedis(t)
	defer mr.Close()

	helpers.CreateTestCredit(t, env.db, 1, 5)
	tmpl := helpers.CreateTestTemplate(t, env.db, 1, "order_update", "Hi {{1}}")

	campaign, _, err := env.campaignService.Create(ctx,
		fixtures.CampaignCreateRequest(1, tmpl.ID, "+15550000001"))
	require.NoError(t, err)
	env.dispatcher.Tick(ctx)

	send, err := env.sendRepo.GetByExternalID(ctx, "wamid.e2e-1")
	require.NoError(t, err)

	q, err := queue.NewQueue(adapter, queue.QueueConfig{
		Name:          "delivery_status_events",
		ConsumerGroup: "reconciler",
		ConsumerName:  "e2e",
		PollInterval:  10 * time.Millisecond,
		BatchSize:     10,
	})
	require.NoError(t, err)

	_, err = q.PublishJSON(ctx, fixtures.StatusEvent(send.ExternalMessageID, model.SendStatusDelivered), nil)
	require.NoError(t, err)

	err = q.Consume(func(ctx context.Context, msg *queue.Message) error {
		return env.statusProcessor.Process(ctx, msg)
	})
	require.NoError(t, err)

	helpers.AssertEventually(t, 2*time.Second, func() bool {
		c, err := env.campaignRepo.Get(ctx, campaign.ID)
		return err == nil && c.DeliveredCount == 1
	}, "delivered count never reconciled from the stream")

	require.NoError(t, q.Stop(time.Second))
}
