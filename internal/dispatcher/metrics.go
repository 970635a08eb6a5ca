package dispatcher

import (
	"sync/atomic"
	"time"
)

type DispatchMetrics struct {
	totalSent       int64
	totalFailed     int64
	totalDurationNs int64
	lastResetNs     int64
}

func NewDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		lastResetNs: time.Now().UnixNano(),
	}
}

func (m *DispatchMetrics) RecordSent(duration time.Duration) {
	atomic.AddInt64(&m.totalSent, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *DispatchMetrics) RecordFailed() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *DispatchMetrics) GetStats() map[string]interface{} {
	sent := atomic.LoadInt64(&m.totalSent)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	lastResetNs := atomic.LoadInt64(&m.lastResetNs)

	elapsed := time.Since(time.Unix(0, lastResetNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(sent) / elapsed
	}

	avgDuration := time.Duration(0)
	if sent > 0 {
		avgDuration = time.Duration(durationNs / sent)
	}

	return map[string]interface{}{
		"total_sent":      sent,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_send_ms":     avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}

func (m *DispatchMetrics) Reset() {
	atomic.StoreInt64(&m.totalSent, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
