package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/services"
	xhttp "github.com/waveline/campaign-engine/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, []services.RecipientFailure, error)
	Cancel(ctx context.Context, tenantID, campaignID int64) error
	Pause(ctx context.Context, tenantID, campaignID int64) error
	Resume(ctx context.Context, tenantID, campaignID int64) error
	Snapshot(ctx context.Context, tenantID, campaignID int64) (*model.CampaignSnapshot, error)
	Recipients(ctx context.Context, tenantID, campaignID int64, limit, offset int) ([]*model.CampaignRecipient, int64, error)
	Engagement(ctx context.Context, tenantID, campaignID int64) ([]*model.ButtonStats, error)
	SendSingle(ctx context.Context, req model.SingleSendRequest) (*model.TemplateSend, error)
}

type CampaignHandler struct {
	svc CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.GET("/campaigns/{id}/recipients", h.ListRecipients)
	e.GET("/campaigns/{id}/engagement", h.GetEngagement)
	e.POST("/campaigns/{id}/pause", h.PauseCampaign)
	e.POST("/campaigns/{id}/resume", h.ResumeCampaign)
	e.POST("/campaigns/{id}/cancel", h.CancelCampaign)
	e.POST("/messages/template", h.SendTemplateMessage)
}

func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		svc: campaignService,
	}
}

type createCampaignRequest struct {
	TenantID   int64               `json:"tenant_id"`
	TemplateID int64               `json:"template_id"`
	ChannelID  int64               `json:"channel_id"`
	Name       string              `json:"name"`
	Recipients model.RecipientSpec `json:"recipients"`
	Schedule   *model.ScheduleSpec `json:"schedule,omitempty"`
}

type createCampaignResponse struct {
	Campaign *model.Campaign             `json:"campaign"`
	Skipped  []services.RecipientFailure `json:"skipped,omitempty"`
}

type recipientListResponse struct {
	Items []*model.CampaignRecipient `json:"items"`
	Total int64                      `json:"total"`
}

type engagementResponse struct {
	Buttons []*model.ButtonStats `json:"buttons"`
}

type sendTemplateRequest struct {
	TenantID   int64             `json:"tenant_id"`
	TemplateID int64             `json:"template_id"`
	ChannelID  int64             `json:"channel_id"`
	Phone      string            `json:"phone"`
	Variables  map[string]string `json:"variables,omitempty"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	campaign, skipped, err := h.svc.Create(ctx, model.CampaignCreateRequest{
		TenantID:   req.TenantID,
		TemplateID: req.TemplateID,
		ChannelID:  req.ChannelID,
		Name:       req.Name,
		Spec:       req.Recipients,
		Schedule:   req.Schedule,
	})
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 201, createCampaignResponse{Campaign: campaign, Skipped: skipped})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	tenantID, campaignID, ok := tenantAndID(ctx)
	if !ok {
		return
	}
	snap, err := h.svc.Snapshot(ctx, tenantID, campaignID)
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 200, snap)
}

func (h *CampaignHandler) ListRecipients(ctx *xhttp.RequestCtx) {
	tenantID, campaignID, ok := tenantAndID(ctx)
	if !ok {
		return
	}

	limit, offset := 50, 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n >= 0 {
			offset = n
		}
	}

	items, total, err := h.svc.Recipients(ctx, tenantID, campaignID, limit, offset)
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 200, recipientListResponse{Items: items, Total: total})
}

func (h *CampaignHandler) GetEngagement(ctx *xhttp.RequestCtx) {
	tenantID, campaignID, ok := tenantAndID(ctx)
	if !ok {
		return
	}
	buttons, err := h.svc.Engagement(ctx, tenantID, campaignID)
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 200, engagementResponse{Buttons: buttons})
}

func (h *CampaignHandler) PauseCampaign(ctx *xhttp.RequestCtx) {
	h.lifecycle(ctx, h.svc.Pause)
}

func (h *CampaignHandler) ResumeCampaign(ctx *xhttp.RequestCtx) {
	h.lifecycle(ctx, h.svc.Resume)
}

func (h *CampaignHandler) CancelCampaign(ctx *xhttp.RequestCtx) {
	h.lifecycle(ctx, h.svc.Cancel)
}

func (h *CampaignHandler) lifecycle(ctx *xhttp.RequestCtx, op func(ctx context.Context, tenantID, campaignID int64) error) {
	tenantID, campaignID, ok := tenantAndID(ctx)
	if !ok {
		return
	}
	if err := op(ctx, tenantID, campaignID); err != nil {
		writeCampaignError(ctx, err)
		return
	}
	snap, err := h.svc.Snapshot(ctx, tenantID, campaignID)
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 200, snap)
}

func (h *CampaignHandler) SendTemplateMessage(ctx *xhttp.RequestCtx) {
	var req sendTemplateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	send, err := h.svc.SendSingle(ctx, model.SingleSendRequest{
		TenantID:   req.TenantID,
		TemplateID: req.TemplateID,
		ChannelID:  req.ChannelID,
		Phone:      req.Phone,
		Variables:  req.Variables,
	})
	if err != nil {
		writeCampaignError(ctx, err)
		return
	}
	writeJSON(ctx, 201, send)
}

/* -------------------------------- Helpers ------------------------------------ */

// writeCampaignError maps service errors onto status codes: unknown
// resources are 404, exhausted credit is 402, admission violations are 422
// and anything unexpected is 500.
func writeCampaignError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrTemplateNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrInsufficientCredits):
		writeError(ctx, 402, err.Error())
	case errors.Is(err, services.ErrTemplateNotApproved),
		errors.Is(err, services.ErrEmptyRecipientSet),
		errors.Is(err, services.ErrRecipientLimitExceeded):
		writeError(ctx, 422, err.Error())
	case errors.Is(err, services.ErrInvalidPhone):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, 500, err.Error())
	}
}

func tenantAndID(ctx *xhttp.RequestCtx) (tenantID, campaignID int64, ok bool) {
	campaignID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return 0, 0, false
	}
	tenantID, err = strconv.ParseInt(query(ctx, "tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(ctx, 400, "tenant_id is required")
		return 0, 0, false
	}
	return tenantID, campaignID, true
}

func pathID(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
