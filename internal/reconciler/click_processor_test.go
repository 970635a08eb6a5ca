package reconciler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/internal/repository"
)

type MockClickRepo struct {
	mock.Mock
}

func (m *MockClickRepo) Create(ctx context.Context, c *model.ButtonClick) (*model.ButtonClick, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ButtonClick), args.Error(1)
}

type MockTemplateRepo struct {
	mock.Mock
}

func (m *MockTemplateRepo) Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

func (m *MockTemplateRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*model.MessageTemplate, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MessageTemplate), args.Error(1)
}

type clickMocks struct {
	clickRepo     *MockClickRepo
	sendRepo      *MockSendRepo
	recipientRepo *MockRecipientRepo
	templateRepo  *MockTemplateRepo
	contactRepo   *MockContactRepo
}

func newClickProcessor() (*ClickProcessor, *clickMocks) {
	m := &clickMocks{
		clickRepo:     new(MockClickRepo),
		sendRepo:      new(MockSendRepo),
		recipientRepo: new(MockRecipientRepo),
		templateRepo:  new(MockTemplateRepo),
		contactRepo:   new(MockContactRepo),
	}
	p := NewClickProcessor(m.clickRepo, m.sendRepo, m.recipientRepo, m.templateRepo, m.contactRepo, nil, 168*time.Hour)
	return p, m
}

func buttonTemplate() *model.MessageTemplate {
	return &model.MessageTemplate{
		ID:       7,
		TenantID: 1,
		Name:     "order_update",
		Status:   model.TemplateStatusApproved,
		Buttons: []model.TemplateButton{
			{ID: "btn_track", Text: "Track order"},
			{ID: "btn_stop", Text: "Stop messages"},
		},
	}
}

func clickMessage(t *testing.T, event model.ButtonClickEvent) *queue.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func TestClickProcessor_AttributesByOriginMessage(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	at := time.Now().Round(time.Second)
	event := model.ButtonClickEvent{
		TenantID:    1,
		Phone:       "+15550000001",
		ButtonID:    "btn_track",
		ButtonText:  "Track order",
		OriginMsgID: "wamid.500",
		ReplyMsgID:  "wamid.501",
		Timestamp:   at,
	}

	m.sendRepo.On("GetByExternalID", ctx, "wamid.500").Return(campaignSend(), nil)
	m.recipientRepo.On("GetBySendID", ctx, int64(500)).Return(&model.CampaignRecipient{ID: 100, CampaignID: 42, ContactID: 9}, nil)
	m.contactRepo.On("GetByPhone", ctx, int64(1), "+15550000001").Return(&model.Contact{ID: 9, TenantID: 1, Phone: "+15550000001"}, nil)
	m.contactRepo.On("IncrementReceived", ctx, int64(9)).Return(nil)
	m.clickRepo.On("Create", ctx, mock.MatchedBy(func(c *model.ButtonClick) bool {
		return c.TemplateSendID != nil && *c.TemplateSendID == 500 &&
			c.CampaignID != nil && *c.CampaignID == 42 &&
			c.RecipientID != nil && *c.RecipientID == 100 &&
			c.ContactID != nil && *c.ContactID == 9 &&
			c.TemplateID != nil && *c.TemplateID == 7 &&
			c.ButtonText == "Track order"
	})).Return(&model.ButtonClick{ID: 1}, nil)

	require.NoError(t, p.Process(ctx, clickMessage(t, event)))

	m.clickRepo.AssertExpectations(t)
	// Origin id matched, no need to scan recent sends.
	m.sendRepo.AssertNotCalled(t, "FindRecentByPhone", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClickProcessor_FallsBackToRecentSends(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	at := time.Now().Round(time.Second)
	event := model.ButtonClickEvent{
		TenantID:   1,
		Phone:      "+15550000001",
		ButtonText: "Track order",
		ReplyMsgID: "wamid.601",
		Timestamp:  at,
	}

	otherTemplateID := int64(8)
	noButtonSend := campaignSend()
	noButtonSend.ID = 510
	noButtonSend.TemplateID = otherTemplateID

	m.sendRepo.On("FindRecentByPhone", ctx, int64(1), "+15550000001", mock.AnythingOfType("time.Time"), recentSendScan).
		Return([]*model.TemplateSend{noButtonSend, campaignSend()}, nil)
	m.templateRepo.On("Get", ctx, int64(1), otherTemplateID).
		Return(&model.MessageTemplate{ID: 8, TenantID: 1, Name: "plain_notice"}, nil)
	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(buttonTemplate(), nil)
	m.recipientRepo.On("GetBySendID", ctx, int64(500)).Return(nil, repository.ErrRecipientNotFound)
	m.contactRepo.On("GetByPhone", ctx, int64(1), "+15550000001").Return(nil, repository.ErrContactNotFound)
	m.clickRepo.On("Create", ctx, mock.MatchedBy(func(c *model.ButtonClick) bool {
		return c.TemplateSendID != nil && *c.TemplateSendID == 500 && c.RecipientID == nil
	})).Return(&model.ButtonClick{ID: 2}, nil)

	require.NoError(t, p.Process(ctx, clickMessage(t, event)))

	m.clickRepo.AssertExpectations(t)
}

func TestClickProcessor_CrossTenantOriginIsNotMatched(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	event := model.ButtonClickEvent{
		TenantID:    2,
		Phone:       "+15550000001",
		ButtonText:  "Track order",
		OriginMsgID: "wamid.500",
		Timestamp:   time.Now(),
	}

	// The origin message belongs to tenant 1, so the match is discarded and
	// the processor falls through to the weaker paths.
	m.sendRepo.On("GetByExternalID", ctx, "wamid.500").Return(campaignSend(), nil)
	m.sendRepo.On("FindRecentByPhone", ctx, int64(2), "+15550000001", mock.AnythingOfType("time.Time"), recentSendScan).
		Return([]*model.TemplateSend{}, nil)
	m.templateRepo.On("ListByTenant", ctx, int64(2)).Return([]*model.MessageTemplate{}, nil)
	m.contactRepo.On("GetByPhone", ctx, int64(2), "+15550000001").Return(nil, repository.ErrContactNotFound)
	m.clickRepo.On("Create", ctx, mock.MatchedBy(func(c *model.ButtonClick) bool {
		return c.TemplateSendID == nil && c.TemplateID == nil && c.TenantID == 2
	})).Return(&model.ButtonClick{ID: 3}, nil)

	require.NoError(t, p.Apply(ctx, &event))

	m.clickRepo.AssertExpectations(t)
}

func TestClickProcessor_TemplateOnlyAttribution(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	event := model.ButtonClickEvent{
		TenantID:   1,
		Phone:      "+15550000009",
		ButtonText: "Stop messages",
		Timestamp:  time.Now(),
	}

	m.sendRepo.On("FindRecentByPhone", ctx, int64(1), "+15550000009", mock.AnythingOfType("time.Time"), recentSendScan).
		Return([]*model.TemplateSend{}, nil)
	m.templateRepo.On("ListByTenant", ctx, int64(1)).Return([]*model.MessageTemplate{buttonTemplate()}, nil)
	m.contactRepo.On("GetByPhone", ctx, int64(1), "+15550000009").Return(nil, repository.ErrContactNotFound)
	m.clickRepo.On("Create", ctx, mock.MatchedBy(func(c *model.ButtonClick) bool {
		return c.TemplateID != nil && *c.TemplateID == 7 && c.TemplateSendID == nil && c.CampaignID == nil
	})).Return(&model.ButtonClick{ID: 4}, nil)

	require.NoError(t, p.Apply(ctx, &event))

	m.clickRepo.AssertExpectations(t)
}

func TestClickProcessor_OrphanClickStillRecorded(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	event := model.ButtonClickEvent{
		TenantID:   1,
		Phone:      "+15550000009",
		ButtonText: "Unrelated reply",
		Timestamp:  time.Now(),
	}

	m.sendRepo.On("FindRecentByPhone", ctx, int64(1), "+15550000009", mock.AnythingOfType("time.Time"), recentSendScan).
		Return([]*model.TemplateSend{}, nil)
	m.templateRepo.On("ListByTenant", ctx, int64(1)).Return([]*model.MessageTemplate{buttonTemplate()}, nil)
	m.contactRepo.On("GetByPhone", ctx, int64(1), "+15550000009").Return(nil, repository.ErrContactNotFound)
	m.clickRepo.On("Create", ctx, mock.MatchedBy(func(c *model.ButtonClick) bool {
		return c.TemplateID == nil && c.TemplateSendID == nil && c.ButtonText == "Unrelated reply"
	})).Return(&model.ButtonClick{ID: 5}, nil)

	require.NoError(t, p.Apply(ctx, &event))

	m.clickRepo.AssertExpectations(t)
}

func TestClickProcessor_InvalidPayloads(t *testing.T) {
	ctx := context.Background()
	p, m := newClickProcessor()

	t.Run("malformed json moves to DLQ", func(t *testing.T) {
		err := p.Process(ctx, &queue.Message{ID: "1-0", Data: []byte("{not json")})
		assert.Error(t, err)
	})

	t.Run("missing button text is dropped", func(t *testing.T) {
		err := p.Process(ctx, clickMessage(t, model.ButtonClickEvent{TenantID: 1, Phone: "+15550000001"}))
		assert.NoError(t, err)
	})

	m.clickRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
