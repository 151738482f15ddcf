package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// errCacheMiss is returned by a ReportCache when the key is absent.
var errCacheMiss = errors.New("cache miss")

// ReportCache is the byte cache in front of report reads.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CachedRepository serves report reads from a cache. Concurrent misses for
// the same case collapse into one repository read. Cache failures are logged
// and fall through to the repository.
type CachedRepository struct {
	Repository
	cache ReportCache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCachedRepository(inner Repository, cache ReportCache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRepository{Repository: inner, cache: cache, ttl: ttl}
}

func reportKey(caseID string) string {
	return "report:" + caseID
}

func (r *CachedRepository) Save(ctx context.Context, report models.DetailedReport) error {
	if err := r.Repository.Save(ctx, report); err != nil {
		return err
	}
	if err := r.cache.Del(ctx, reportKey(report.CaseID)); err != nil {
		logger.Log.WithError(err).WithField("case_id", report.CaseID).Warn("failed to invalidate cached report")
	}
	return nil
}

func (r *CachedRepository) Get(ctx context.Context, caseID string) (models.DetailedReport, error) {
	key := reportKey(caseID)
	v, err, shared := r.sf.Do(key, func() (interface{}, error) {
		if raw, err := r.cache.Get(ctx, key); err == nil {
			var report models.DetailedReport
			if err := json.Unmarshal(raw, &report); err == nil {
				return report, nil
			}
		} else if !errors.Is(err, errCacheMiss) {
			logger.Log.WithError(err).WithField("case_id", caseID).Warn("report cache read failed")
		}

		report, err := r.Repository.Get(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(report); err == nil {
			if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
				logger.Log.WithError(err).WithField("case_id", caseID).Warn("report cache write failed")
			}
		}
		return report, nil
	})
	if err != nil {
		return models.DetailedReport{}, err
	}
	if shared {
		logger.Log.WithField("case_id", caseID).Debug("report read shared with concurrent callers")
	}
	return v.(models.DetailedReport), nil
}
