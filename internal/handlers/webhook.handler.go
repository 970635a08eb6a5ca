package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/waveline/campaign-engine/internal/model"
	xhttp "github.com/waveline/campaign-engine/pkg/http"
	"github.com/waveline/campaign-engine/pkg/logger"
)

// EventPublisher appends one event to a stream and returns its id.
type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// WebhookHandler ingests provider callbacks. It only validates shape and
// enqueues; all reconciliation happens asynchronously so the provider gets
// an answer within its delivery timeout regardless of database load.
type WebhookHandler struct {
	statusQueue EventPublisher
	clickQueue  EventPublisher
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/status", h.ReceiveStatus)
	e.POST("/webhooks/clicks", h.ReceiveClick)
}

func NewWebhookHandler(statusQueue, clickQueue EventPublisher) *WebhookHandler {
	return &WebhookHandler{
		statusQueue: statusQueue,
		clickQueue:  clickQueue,
	}
}

func (h *WebhookHandler) ReceiveStatus(ctx *xhttp.RequestCtx) {
	var event model.DeliveryStatusEvent
	if err := readJSON(ctx, &event); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if !event.Validate() {
		writeError(ctx, 422, "external_message_id and a known status are required")
		return
	}

	id, err := h.statusQueue.PublishJSON(ctx, event, map[string]string{"type": "delivery_status"})
	if err != nil {
		logger.Error("Failed to enqueue status event", "external_message_id", event.ExternalMessageID, "error", err)
		writeError(ctx, 503, "event could not be queued")
		return
	}
	writeJSON(ctx, 202, map[string]string{"event_id": id})
}

func (h *WebhookHandler) ReceiveClick(ctx *xhttp.RequestCtx) {
	var event model.ButtonClickEvent
	if err := readJSON(ctx, &event); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if event.TenantID == 0 || event.Phone == "" || event.ButtonText == "" {
		writeError(ctx, 422, "tenant_id, phone and button_text are required")
		return
	}

	id, err := h.clickQueue.PublishJSON(ctx, event, map[string]string{"type": "button_click"})
	if err != nil {
		logger.Error("Failed to enqueue click event", "tenant_id", event.TenantID, "error", err)
		writeError(ctx, 503, "event could not be queued")
		return
	}
	writeJSON(ctx, 202, map[string]string{"event_id": id})
}
