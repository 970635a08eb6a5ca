package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/waveline/campaign-engine/internal/config"
	"github.com/waveline/campaign-engine/internal/dispatcher"
	gateway "github.com/waveline/campaign-engine/internal/gateways"
	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/internal/reconciler"
	"github.com/waveline/campaign-engine/internal/repository"
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
	templateRepo := repository.NewTemplateRepository(db)
	sendRepo := repository.NewSendRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	clickRepo := repository.NewClickRepository(db)
	contactRepo := repository.NewContactRepository(db)

	d := dispatcher.NewDispatcher(campaignRepo, recipientRepo, templateRepo, sendRepo, contactRepo, gatewayClient, dispatcher.Config{
		BatchSize:        config.Get().DispatchBatchSize,
		PollInterval:     config.Get().DispatchPollInterval,
		BatchDelay:       config.Get().DispatchBatchDelay,
		SendTimeout:      config.Get().DispatchSendTimeout,
		StaleQueuedAfter: config.Get().DispatchStaleQueued,
	})

	deduper := reconciler.NewDeduper(redisAdap, reconciler.DefaultDedupeConfig())
	statusProcessor := reconciler.NewStatusProcessor(sendRepo, deliveryRepo, recipientRepo, campaignRepo, contactRepo, deduper)
	clickProcessor := reconciler.NewClickProcessor(clickRepo, sendRepo, recipientRepo, templateRepo, contactRepo, deduper, config.Get().AttributionWindow)

	service := reconciler.NewReconcilerService(redisAdap,
		reconciler.StreamBinding{
			Config:    streamConfig(config.Get().StatusStreamName),
			Processor: statusProcessor,
			Consumers: 2,
		},
		reconciler.StreamBinding{
			Config:    streamConfig(config.Get().ClickStreamName),
			Processor: clickProcessor,
			Consumers: 1,
		},
	)

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
		prom.ListenAndServer(":9101", "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := d.Start(); err != nil {
			logger.Error("failed to start dispatcher", "error", err)
		}
	}()
	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start reconciler", "error", err)
		}
	}()

	select {
	case <-c:
		d.Stop()
		service.Stop()
		gatewayClient.Close()
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
