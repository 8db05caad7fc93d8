package runstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultReportTTL = 15 * time.Minute

// ReportCache keeps finished reports in Redis so repeated topic reads skip
// the filesystem. A nil client disables caching.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

func reportKey(topic string) string { return "report:" + topic }

// Get returns the cached report and whether it was present. Cache errors are
// treated as misses.
func (c *ReportCache) Get(ctx context.Context, topic string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, reportKey(topic)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *ReportCache) Set(ctx context.Context, topic, report string) {
	if c == nil || c.rdb == nil || report == "" {
		return
	}
	c.rdb.Set(ctx, reportKey(topic), report, c.ttl)
}

// Invalidate drops a topic's cached report, typically after a new run.
func (c *ReportCache) Invalidate(ctx context.Context, topic string) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, reportKey(topic))
}
