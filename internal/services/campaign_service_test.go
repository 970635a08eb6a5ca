package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) CreateWithRecipients(ctx context.Context, c *model.Campaign, recipients []*model.CampaignRecipient, trigger *model.CampaignTrigger) (*model.Campaign, error) {
	args := m.Called(ctx, c, recipients, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCampaignRepository) MarkPaused(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCampaignRepository) MarkResumed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCampaignRepository) MarkCancelled(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCampaignRepository) FireTrigger(ctx context.Context, campaignID int64) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

func (m *MockCampaignRepository) Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus, extra map[string]interface{}) error {
	args := m.Called(ctx, id, from, to, extra)
	return args.Error(0)
}

func (m *MockCampaignRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) CancelActive(ctx context.Context, campaignID int64) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecipientRepository) ListByCampaign(ctx context.Context, campaignID int64, limit, offset int) ([]*model.CampaignRecipient, int64, error) {
	args := m.Called(ctx, campaignID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.CampaignRecipient), args.Get(1).(int64), args.Error(2)
}

type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) Reserve(ctx context.Context, tenantID int64, amount int64) (int64, error) {
	args := m.Called(ctx, tenantID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCreditRepository) Add(ctx context.Context, tenantID int64, amount int64) (int64, error) {
	args := m.Called(ctx, tenantID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCreditRepository) GetRemaining(ctx context.Context, tenantID int64) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Get(ctx context.Context, tenantID, id int64) (*model.MessageTemplate, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

type MockSendRepository struct {
	mock.Mock
}

func (m *MockSendRepository) Create(ctx context.Context, s *model.TemplateSend) (*model.TemplateSend, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemplateSend), args.Error(1)
}

type MockClickRepository struct {
	mock.Mock
}

func (m *MockClickRepository) CampaignStats(ctx context.Context, campaignID int64) ([]*model.ButtonStats, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ButtonStats), args.Error(1)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) Upsert(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) GetByPhone(ctx context.Context, tenantID int64, phone string) (*model.Contact, error) {
	args := m.Called(ctx, tenantID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

type MockTemplateGateway struct {
	mock.Mock
}

func (m *MockTemplateGateway) SendTemplate(ctx context.Context, req *gateways.SendTemplateRequest) (*gateways.SendTemplateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateways.SendTemplateResponse), args.Error(1)
}

type campaignServiceMocks struct {
	campaignRepo  *MockCampaignRepository
	recipientRepo *MockRecipientRepository
	creditRepo    *MockCreditRepository
	templateRepo  *MockTemplateRepository
	sendRepo      *MockSendRepository
	clickRepo     *MockClickRepository
	contactRepo   *MockContactRepository
	gateway       *MockTemplateGateway
}

func newCampaignService(maxRecipients int) (*CampaignService, *campaignServiceMocks) {
	m := &campaignServiceMocks{
		campaignRepo:  new(MockCampaignRepository),
		recipientRepo: new(MockRecipientRepository),
		creditRepo:    new(MockCreditRepository),
		templateRepo:  new(MockTemplateRepository),
		sendRepo:      new(MockSendRepository),
		clickRepo:     new(MockClickRepository),
		contactRepo:   new(MockContactRepository),
		gateway:       new(MockTemplateGateway),
	}
	svc := NewCampaignService(
		m.campaignRepo,
		m.recipientRepo,
		m.creditRepo,
		m.templateRepo,
		m.sendRepo,
		m.clickRepo,
		NewContactService(m.contactRepo),
		m.gateway,
		maxRecipients,
		5*time.Second,
	)
	return svc, m
}

func approvedTemplate() *model.MessageTemplate {
	return &model.MessageTemplate{
		ID:       7,
		TenantID: 1,
		Name:     "order_update",
		Language: "en",
		Body:     "Hi {{1}}, your order shipped",
		Status:   model.TemplateStatusApproved,
	}
}

func createRequest(phones ...string) model.CampaignCreateRequest {
	descriptors := make([]model.RecipientDescriptor, 0, len(phones))
	for _, p := range phones {
		descriptors = append(descriptors, model.RecipientDescriptor{Phone: p})
	}
	return model.CampaignCreateRequest{
		TenantID:   1,
		TemplateID: 7,
		ChannelID:  3,
		Name:       "spring launch",
		Spec:       model.RecipientSpec{Recipients: descriptors},
	}
}

func TestCampaignService_Create_ImmediateStartsRunning(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	phones := []string{"+15550000001", "+15550000002", "+15550000003"}
	req := createRequest(phones...)

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
	for i, p := range phones {
		m.contactRepo.On("Upsert", ctx, mock.MatchedBy(func(c *model.Contact) bool {
			return c.Phone == p
		})).Return(&model.Contact{ID: int64(i + 1), TenantID: 1, Phone: p}, nil)
	}
	m.campaignRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.creditRepo.On("Reserve", ctx, int64(1), int64(3)).Return(int64(2), nil)
	m.campaignRepo.On("CreateWithRecipients", ctx, mock.Anything, mock.MatchedBy(func(rs []*model.CampaignRecipient) bool {
		return len(rs) == 3 && rs[0].Status == model.RecipientStatusPending
	}), mock.MatchedBy(func(tr *model.CampaignTrigger) bool {
		return tr.Kind == model.TriggerImmediate
	})).Return(&model.Campaign{ID: 42, TenantID: 1, Status: model.CampaignStatusDraft, TotalRecipients: 3}, nil)
	m.campaignRepo.On("MarkRunning", ctx, int64(42), mock.AnythingOfType("time.Time")).Return(nil)
	m.campaignRepo.On("FireTrigger", ctx, int64(42)).Return(nil)

	campaign, failures, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	assert.Empty(t, failures)
	assert.Equal(t, int64(42), campaign.ID)
	assert.Equal(t, model.CampaignStatusRunning, campaign.Status)
	assert.Equal(t, 3, campaign.TotalRecipients)

	m.creditRepo.AssertExpectations(t)
	m.campaignRepo.AssertExpectations(t)
}

func TestCampaignService_Create_InsufficientCredits(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	req := createRequest("+15550000001", "+15550000002", "+15550000003")

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
	m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil).Once()
	m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 2, TenantID: 1, Phone: "+15550000002"}, nil).Once()
	m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 3, TenantID: 1, Phone: "+15550000003"}, nil).Once()
	m.campaignRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.creditRepo.On("Reserve", ctx, int64(1), int64(3)).Return(int64(0), repository.ErrInsufficientCredits)

	campaign, _, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Nil(t, campaign)

	m.campaignRepo.AssertNotCalled(t, "CreateWithRecipients", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.campaignRepo.AssertNotCalled(t, "MarkRunning", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_Create_TemplateNotApproved(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	tmpl := approvedTemplate()
	tmpl.Status = model.TemplateStatusPending
	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(tmpl, nil)

	campaign, _, err := svc.Create(ctx, createRequest("+15550000001"))
	assert.ErrorIs(t, err, ErrTemplateNotApproved)
	assert.Nil(t, campaign)
}

func TestCampaignService_Create_EmptyRecipientSet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCampaignService(100)

	campaign, _, err := svc.Create(ctx, createRequest())
	assert.ErrorIs(t, err, ErrEmptyRecipientSet)
	assert.Nil(t, campaign)
}

func TestCampaignService_Create_RecipientLimitExceeded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCampaignService(2)

	campaign, _, err := svc.Create(ctx, createRequest("+15550000001", "+15550000002", "+15550000003"))
	assert.ErrorIs(t, err, ErrRecipientLimitExceeded)
	assert.Nil(t, campaign)
}

func TestCampaignService_Create_DeduplicatesAndSkipsOptedOut(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	req := createRequest("+15550000001", "+1 (555) 000-0001", "+15550000002")

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
	m.contactRepo.On("Upsert", ctx, mock.MatchedBy(func(c *model.Contact) bool {
		return c.Phone == "+15550000001"
	})).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil)
	m.contactRepo.On("Upsert", ctx, mock.MatchedBy(func(c *model.Contact) bool {
		return c.Phone == "+15550000002"
	})).Return(&model.Contact{ID: 2, TenantID: 1, Phone: "+15550000002", OptedOut: true}, nil)
	m.campaignRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(9), nil)
	m.campaignRepo.On("CreateWithRecipients", ctx, mock.Anything, mock.MatchedBy(func(rs []*model.CampaignRecipient) bool {
		return len(rs) == 1 && rs[0].Phone == "+15550000001"
	}), mock.Anything).Return(&model.Campaign{ID: 42, TenantID: 1, Status: model.CampaignStatusDraft, TotalRecipients: 1}, nil)
	m.campaignRepo.On("MarkRunning", ctx, int64(42), mock.AnythingOfType("time.Time")).Return(nil)
	m.campaignRepo.On("FireTrigger", ctx, int64(42)).Return(nil)

	campaign, failures, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	require.Len(t, failures, 1)
	assert.Equal(t, "+15550000002", failures[0].Phone)

	m.creditRepo.AssertExpectations(t)
}

func TestCampaignService_Create_FiltersByTags(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	req := createRequest("+15550000001", "+15550000002", "+15550000003")
	req.Spec.IncludeTags = []string{"vip"}
	req.Spec.ExcludeTags = []string{"blocked"}

	tagsByPhone := map[string][]string{
		"+15550000001": {"vip"},
		"+15550000002": {"vip", "blocked"},
		"+15550000003": {"newsletter"},
	}

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
	id := int64(0)
	for phone, tags := range tagsByPhone {
		id++
		m.contactRepo.On("Upsert", ctx, mock.MatchedBy(func(c *model.Contact) bool {
			return c.Phone == phone
		})).Return(&model.Contact{ID: id, TenantID: 1, Phone: phone, Tags: tags}, nil)
	}
	m.campaignRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(9), nil)
	m.campaignRepo.On("CreateWithRecipients", ctx, mock.Anything, mock.MatchedBy(func(rs []*model.CampaignRecipient) bool {
		return len(rs) == 1 && rs[0].Phone == "+15550000001"
	}), mock.Anything).Return(&model.Campaign{ID: 44, TenantID: 1, Status: model.CampaignStatusDraft, TotalRecipients: 1}, nil)
	m.campaignRepo.On("MarkRunning", ctx, int64(44), mock.AnythingOfType("time.Time")).Return(nil)
	m.campaignRepo.On("FireTrigger", ctx, int64(44)).Return(nil)

	campaign, failures, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	require.Len(t, failures, 2)

	reasons := map[string]string{}
	for _, f := range failures {
		reasons[f.Phone] = f.Reason
	}
	assert.Equal(t, "excluded by tag blocked", reasons["+15550000002"])
	assert.Equal(t, "missing required tag", reasons["+15550000003"])
}

func TestCampaignService_Create_ScheduledStaysScheduled(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	later := time.Now().Add(time.Hour)
	req := createRequest("+15550000001")
	req.Schedule = &model.ScheduleSpec{Kind: model.TriggerScheduled, ScheduledAt: &later}

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
	m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil)
	m.campaignRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(4), nil)
	m.campaignRepo.On("CreateWithRecipients", ctx, mock.Anything, mock.Anything, mock.MatchedBy(func(tr *model.CampaignTrigger) bool {
		return tr.Kind == model.TriggerScheduled && tr.ScheduledAt != nil
	})).Return(&model.Campaign{ID: 43, TenantID: 1, Status: model.CampaignStatusDraft, TotalRecipients: 1}, nil)
	m.campaignRepo.On("Transition", ctx, int64(43), []model.CampaignStatus{model.CampaignStatusDraft}, model.CampaignStatusScheduled, mock.Anything).Return(nil)

	campaign, _, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusScheduled, campaign.Status)

	m.campaignRepo.AssertNotCalled(t, "MarkRunning", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	m.campaignRepo.On("Get", ctx, int64(42)).Return(&model.Campaign{ID: 42, TenantID: 1, Status: model.CampaignStatusRunning}, nil)
	m.campaignRepo.On("MarkCancelled", ctx, int64(42)).Return(nil)
	m.recipientRepo.On("CancelActive", ctx, int64(42)).Return(int64(5), nil)

	err := svc.Cancel(ctx, 1, 42)
	require.NoError(t, err)

	m.creditRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	m.recipientRepo.AssertExpectations(t)
}

func TestCampaignService_Cancel_WrongTenant(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	m.campaignRepo.On("Get", ctx, int64(42)).Return(&model.Campaign{ID: 42, TenantID: 9}, nil)

	err := svc.Cancel(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	m.campaignRepo.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything)
}

func TestCampaignService_Snapshot(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	started := time.Now().Add(-time.Minute)
	m.campaignRepo.On("Get", ctx, int64(42)).Return(&model.Campaign{
		ID:              42,
		TenantID:        1,
		Status:          model.CampaignStatusRunning,
		TotalRecipients: 4,
		SentCount:       2,
		DeliveredCount:  1,
		FailedCount:     1,
		StartedAt:       &started,
	}, nil)

	snap, err := svc.Snapshot(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusRunning, snap.Status)
	assert.Equal(t, 75, snap.ProgressPercent)
	assert.Equal(t, 2, snap.SentCount)
	assert.Equal(t, 1, snap.FailedCount)
}

func TestCampaignService_SendSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted send is persisted as sent", func(t *testing.T) {
		svc, m := newCampaignService(100)

		m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
		m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil)
		m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(4), nil)
		m.gateway.On("SendTemplate", mock.Anything, mock.MatchedBy(func(r *gateways.SendTemplateRequest) bool {
			return r.Phone == "+15550000001" && r.TemplateName == "order_update"
		})).Return(&gateways.SendTemplateResponse{ExternalMessageID: "wamid.1", Status: gateways.SendAccepted}, nil)
		m.sendRepo.On("Create", ctx, mock.MatchedBy(func(s *model.TemplateSend) bool {
			return s.Status == model.SendStatusSent && s.ExternalMessageID == "wamid.1"
		})).Return(&model.TemplateSend{ID: 11, Status: model.SendStatusSent, ExternalMessageID: "wamid.1"}, nil)

		send, err := svc.SendSingle(ctx, model.SingleSendRequest{
			TenantID: 1, TemplateID: 7, ChannelID: 3, Phone: "+15550000001",
			Variables: map[string]string{"1": "Dana"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.SendStatusSent, send.Status)
	})

	t.Run("gateway rejection is persisted as failed with code", func(t *testing.T) {
		svc, m := newCampaignService(100)

		m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
		m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil)
		m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(4), nil)
		m.gateway.On("SendTemplate", mock.Anything, mock.Anything).
			Return(nil, &gateways.SendError{Code: "131026", Message: "recipient not reachable"})
		m.sendRepo.On("Create", ctx, mock.MatchedBy(func(s *model.TemplateSend) bool {
			return s.Status == model.SendStatusFailed && s.ErrorCode == "131026"
		})).Return(&model.TemplateSend{ID: 12, Status: model.SendStatusFailed, ErrorCode: "131026"}, nil)

		send, err := svc.SendSingle(ctx, model.SingleSendRequest{
			TenantID: 1, TemplateID: 7, ChannelID: 3, Phone: "+15550000001",
		})
		require.NoError(t, err)
		assert.Equal(t, model.SendStatusFailed, send.Status)

		m.creditRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient credits", func(t *testing.T) {
		svc, m := newCampaignService(100)

		m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)
		m.contactRepo.On("Upsert", ctx, mock.Anything).Return(&model.Contact{ID: 1, TenantID: 1, Phone: "+15550000001"}, nil)
		m.creditRepo.On("Reserve", ctx, int64(1), int64(1)).Return(int64(0), repository.ErrInsufficientCredits)

		send, err := svc.SendSingle(ctx, model.SingleSendRequest{
			TenantID: 1, TemplateID: 7, ChannelID: 3, Phone: "+15550000001",
		})
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.Nil(t, send)
		m.gateway.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
	})
}

func TestCampaignService_Create_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCampaignService(100)

	req := createRequest("+15550000001")
	req.TenantID = 0

	campaign, _, err := svc.Create(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, campaign)
}

func TestCampaignService_Create_AllRecipientsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, m := newCampaignService(100)

	m.templateRepo.On("Get", ctx, int64(1), int64(7)).Return(approvedTemplate(), nil)

	campaign, failures, err := svc.Create(ctx, createRequest("abc", "12"))
	assert.ErrorIs(t, err, ErrEmptyRecipientSet)
	assert.Nil(t, campaign)
	assert.Len(t, failures, 2)
	assert.True(t, errors.Is(err, ErrEmptyRecipientSet))
}
