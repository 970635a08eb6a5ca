package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/waveline/campaign-engine/internal/config"
	gateway "github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/handlers"
	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/internal/services"
	xhttp "github.com/waveline/campaign-engine/pkg/http"
	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/pg"
	"github.com/waveline/campaign-engine/pkg/prom"
	"github.com/waveline/campaign-engine/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	statusQueue, err := queue.NewQueue(redisAdap, streamConfig(config.Get().StatusStreamName))
	if err != nil {
		logger.Error("failed creating status stream", "error", err)
		return
	}
	clickQueue, err := queue.NewQueue(redisAdap, streamConfig(config.Get().ClickStreamName))
	if err != nil {
		logger.Error("failed creating click stream", "error", err)
		return
	}

	gatewayClient, err := gateway.NewClient(&gateway.Config{
		Providers: []gateway.ProviderConfig{
			{Name: "primary", URL: config.Get().GatewayPrimaryUrl, ApiKey: config.Get().GatewayApiKey, Weight: 100},
			{Name: "backup", URL: config.Get().GatewayBackupUrl, ApiKey: config.Get().GatewayApiKey, Weight: 60},
		},
		Timeout:                 config.Get().DispatchSendTimeout,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create gateway client", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	sendRepo := repository.NewSendRepository(db)
	clickRepo := repository.NewClickRepository(db)
	contactRepo := repository.NewContactRepository(db)

	// services
	contactService := services.NewContactService(contactRepo)
	campaignService := services.NewCampaignService(
		campaignRepo,
		recipientRepo,
		creditRepo,
		templateRepo,
		sendRepo,
		clickRepo,
		contactService,
		gatewayClient,
		config.Get().CampaignMaxRecipients,
		config.Get().DispatchSendTimeout,
	)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	creditHandler := handlers.NewCreditHandler(creditRepo)
	webhookHandler := handlers.NewWebhookHandler(statusQueue, clickQueue)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterCreditRoutes(g, creditHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		gatewayClient.Close()
		s.Shutdown()
	}
}

func streamConfig(name string) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              name,
		ConsumerGroup:     config.Get().StreamConsumerGroup,
		ConsumerName:      config.Get().StreamConsumerName,
		MaxRetries:        config.Get().StreamMaxRetries,
		VisibilityTimeout: config.Get().StreamVisibilityTimeout,
		PollInterval:      config.Get().StreamPollInterval,
		BatchSize:         config.Get().StreamBatchSize,
		MaxLen:            config.Get().StreamMaxLen,
		EnableDLQ:         config.Get().StreamEnableDLQ,
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
