package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendState mirrors the gateway wire protocol.
type SendState string

const (
	StateAccepted SendState = "ACCEPTED"
	StateRejected SendState = "REJECTED"
)

// SendTemplateRequest is a template send submitted by the engine.
type SendTemplateRequest struct {
	ChannelID    string            `json:"channel_id" binding:"required"`
	Phone        string            `json:"phone" binding:"required"`
	TemplateName string            `json:"template_name" binding:"required"`
	Language     string            `json:"language"`
	Variables    map[string]string `json:"variables"`
}

// SendTemplateResponse is the synchronous accept/reject answer.
type SendTemplateResponse struct {
	ExternalMessageID string    `json:"external_message_id"`
	Status            SendState `json:"status"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMsg          string    `json:"error_message,omitempty"`
	AcceptedAt        time.Time `json:"accepted_at"`
}

// DeliveryStatusEvent is the asynchronous callback the simulator fires back
// at the engine's status webhook.
type DeliveryStatusEvent struct {
	ExternalMessageID string    `json:"external_message_id"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	ProviderID string    `json:"provider_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
}

// MockProvider simulates a WhatsApp/Instagram messaging provider: a
// synchronous accept/reject answer followed by delayed status callbacks.
type MockProvider struct {
	acceptRate  float64
	readRate    float64
	minDelay    time.Duration
	maxDelay    time.Duration
	callbackURL string
	providerID  string
	httpClient  *http.Client
	rng         *rand.Rand
}

// NewMockProvider creates a new mock provider instance
func NewMockProvider(acceptRate, readRate float64, minDelay, maxDelay time.Duration, callbackURL string) *MockProvider {
	return &MockProvider{
		acceptRate:  acceptRate,
		readRate:    readRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		callbackURL: callbackURL,
		providerID:  "MOCK_PROVIDER_" + uuid.New().String()[:8],
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// handleSend decides accept or reject and, on accept, schedules the
// asynchronous status progression.
func (m *MockProvider) handleSend(req *SendTemplateRequest) *SendTemplateResponse {
	response := &SendTemplateResponse{
		AcceptedAt: time.Now(),
	}

	if !m.shouldAccept() {
		response.Status = StateRejected
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("phone", req.Phone).
			Str("template", req.TemplateName).
			Str("error_code", response.ErrorCode).
			Msg("Template send rejected")
		return response
	}

	response.Status = StateAccepted
	response.ExternalMessageID = "wamid." + uuid.New().String()

	log.Info().
		Str("phone", req.Phone).
		Str("template", req.TemplateName).
		Str("external_message_id", response.ExternalMessageID).
		Msg("Template send accepted")

	if m.callbackURL != "" {
		go m.simulateDeliveryProgression(response.ExternalMessageID)
	}

	return response
}

// simulateDeliveryProgression walks an accepted message through
// sent, delivered and sometimes read, with random delays in between.
// Callbacks are fired twice now and then to exercise the consumer's
// replay handling.
func (m *MockProvider) simulateDeliveryProgression(externalID string) {
	statuses := []string{"sent", "delivered"}
	if m.rng.Float64() < m.readRate {
		statuses = append(statuses, "read")
	}

	for _, status := range statuses {
		time.Sleep(m.randomDelay())
		m.postCallback(DeliveryStatusEvent{
			ExternalMessageID: externalID,
			Status:            status,
			Timestamp:         time.Now(),
		})
		if m.rng.Float64() < 0.1 {
			m.postCallback(DeliveryStatusEvent{
				ExternalMessageID: externalID,
				Status:            status,
				Timestamp:         time.Now(),
			})
		}
	}
}

func (m *MockProvider) postCallback(event DeliveryStatusEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	resp, err := m.httpClient.Post(m.callbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("external_message_id", event.ExternalMessageID).Msg("Callback failed")
		return
	}
	resp.Body.Close()

	log.Info().
		Str("external_message_id", event.ExternalMessageID).
		Str("status", event.Status).
		Int("code", resp.StatusCode).
		Msg("Status callback delivered")
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockProvider) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"131026",
		"131047",
		"131050",
		"132000",
		"133010",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"131026": "Message undeliverable, recipient not reachable",
		"131047": "Re-engagement message outside the allowed window",
		"131050": "User has requested to stop receiving marketing messages",
		"132000": "Template parameter count mismatch",
		"133010": "Channel is not registered for this account",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

// SendTemplate handles template send requests
func (h *Handler) SendTemplate(c *gin.Context) {
	var req SendTemplateRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("channel_id", req.ChannelID).
		Str("phone", req.Phone).
		Str("template", req.TemplateName).
		Msg("Received template send request")

	c.JSON(http.StatusOK, h.provider.handleSend(&req))
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.provider.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		ProviderID: h.provider.providerID,
		Timestamp:  time.Now(),
		AcceptRate: h.provider.acceptRate,
	})
}

// UpdateConfig allows changing provider configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
		ReadRate   *float64 `json:"read_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil && *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
		h.provider.acceptRate = *config.AcceptRate
		log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
	}
	if config.ReadRate != nil && *config.ReadRate >= 0 && *config.ReadRate <= 1.0 {
		h.provider.readRate = *config.ReadRate
		log.Info().Float64("rate", *config.ReadRate).Msg("Updated read rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.provider.acceptRate,
		"read_rate":   h.provider.readRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/messages/template", handler.SendTemplate)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	acceptRate := getEnvFloat("ACCEPT_RATE", 0.95)
	readRate := getEnvFloat("READ_RATE", 0.6)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)
	callbackURL := getEnv("CALLBACK_URL", "")

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Float64("read_rate", readRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("callback_url", callbackURL).
		Msg("Starting mock messaging provider")

	provider := NewMockProvider(acceptRate, readRate, minDelay, maxDelay, callbackURL)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
