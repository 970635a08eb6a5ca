package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waveline/campaign-engine/internal/queue"
	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/redis"
	"github.com/waveline/campaign-engine/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Processor handles one event stream.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// StreamBinding attaches a processor to the stream it consumes.
type StreamBinding struct {
	Config    queue.QueueConfig
	Processor Processor
	Consumers int
}

// ReconcilerService consumes the delivery-status and button-click streams
// and funnels their events through a shared worker pool.
type ReconcilerService struct {
	adapter  redis.RedisAdapter
	bindings []StreamBinding
	queues   []*queue.Queue
	metrics  *ConsumerMetrics
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	worker   *worker.WorkerManager
}

func NewReconcilerService(adapter redis.RedisAdapter, bindings ...StreamBinding) *ReconcilerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReconcilerService{
		adapter:  adapter,
		bindings: bindings,
		queues:   make([]*queue.Queue, 0),
		metrics:  NewConsumerMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		worker:   worker.NewWorkerManager(10_000, 100, nil),
	}
}

func (s *ReconcilerService) Start() error {
	logger.Info("Starting reconciler...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for _, binding := range s.bindings {
		consumers := binding.Consumers
		if consumers <= 0 {
			consumers = 1
		}
		for i := 0; i < consumers; i++ {
			cfg := binding.Config
			cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

			q, err := queue.NewQueue(s.adapter, cfg)
			if err != nil {
				return fmt.Errorf("failed to create consumer for %s: %w", cfg.Name, err)
			}

			processor := binding.Processor
			if err := q.Consume(func(ctx context.Context, msg *queue.Message) error {
				return s.dispatch(ctx, processor, msg)
			}); err != nil {
				return fmt.Errorf("failed to start consumer for %s: %w", cfg.Name, err)
			}

			s.queues = append(s.queues, q)
			logger.Info("Started stream consumer", "stream", cfg.Name, "processor", processor.GetType(), "instance", i)
		}
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Reconciler started", "consumers", len(s.queues))
	return nil
}

type job struct {
	msg        *queue.Message
	processor  Processor
	resultChan chan error
	ctx        context.Context
}

// dispatch hands the message to the worker pool and blocks until it is
// processed or the per-message timeout fires.
func (s *ReconcilerService) dispatch(ctx context.Context, processor Processor, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&job{
		msg:        msg,
		processor:  processor,
		resultChan: resultChan,
		ctx:        msgCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process event: %w", msgCtx.Err())
	}
}

func (s *ReconcilerService) workerHandler(workerIndex int, item interface{}) {
	j, ok := item.(*job)
	if !ok {
		logger.Error("Unexpected job type in worker pool", "worker", workerIndex)
		return
	}

	start := time.Now()
	procCtx, cancel := context.WithTimeout(j.ctx, ProcessingTimeout)
	defer cancel()

	err := j.processor.Process(procCtx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	select {
	case j.resultChan <- err:
	default:
	}
}

func (s *ReconcilerService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ReconcilerService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Reconciler metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("Stream stats", "queue", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *ReconcilerService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ReconcilerService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("HEALTH CHECK WARNING: Stream stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingMessages > 10000 {
			logger.Warn("HEALTH CHECK WARNING: Stream has high lag", "queue", i, "pending_messages", stats.PendingMessages)
		}
	}

	logger.Info("HEALTH CHECK: OK - Reconciler healthy")
}

// Stop gracefully stops the service.
func (s *ReconcilerService) Stop() {
	logger.Info("Shutting down reconciler...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, queue *queue.Queue) {
			if err := queue.Stop(timeout); err != nil {
				logger.Error("Error stopping stream consumer", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("Timeout waiting for stream consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("Reconciler stopped")
}
