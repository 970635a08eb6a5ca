package reconciler

import (
	"time"

	"github.com/waveline/campaign-engine/pkg/logger"
	"github.com/waveline/campaign-engine/pkg/redis"
)

type DedupeConfig struct {
	ProcessedTTL time.Duration
	KeyPrefix    string
}

func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		ProcessedTTL: 24 * time.Hour,
		KeyPrefix:    "reconciled:",
	}
}

// Deduper is a best-effort fast path for webhook redelivery. It only skips
// work: correctness does not depend on it, because every state change behind
// it is a monotonic conditional update. A lost marker costs one redundant
// no-op write, never a double count.
type Deduper struct {
	redis  redis.RedisAdapter
	config DedupeConfig
}

func NewDeduper(redisAdapter redis.RedisAdapter, config DedupeConfig) *Deduper {
	return &Deduper{
		redis:  redisAdapter,
		config: config,
	}
}

func (d *Deduper) Seen(key string) bool {
	if d == nil || d.redis == nil || key == "" {
		return false
	}
	exists, err := d.redis.Exist(d.config.KeyPrefix + key)
	if err != nil {
		logger.Warn("Failed to check processed marker", "key", key, "error", err)
		return false
	}
	return exists > 0
}

func (d *Deduper) Mark(key string) {
	if d == nil || d.redis == nil || key == "" {
		return
	}
	if err := d.redis.Set(d.config.KeyPrefix+key, []byte("1"), d.config.ProcessedTTL); err != nil {
		logger.Warn("Failed to set processed marker", "key", key, "error", err)
	}
}
