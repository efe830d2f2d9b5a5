package progress

import (
	"context"
	"time"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/pkg/logger"
	"github.com/wonny/stratplan/pkg/redis"
)

// Store is a progress source that also accepts commits
type Store interface {
	Source
	Committer
}

// CachedSource caches Fetch results in Redis. Commits go to the wrapped
// committer (if any) and invalidate the touched KRA/year keys.
type CachedSource struct {
	source    Source
	committer Committer
	cache     *redis.Cache
	ttl       time.Duration
	logger    *logger.Logger
}

// NewCachedSource wraps source. When source also implements Committer,
// Commit is forwarded to it.
func NewCachedSource(source Source, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	c := &CachedSource{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: log.Component("progress_cache"),
	}
	if committer, ok := source.(Committer); ok {
		c.committer = committer
	}
	return c
}

// Fetch returns cached records or reads them from the source
func (c *CachedSource) Fetch(ctx context.Context, kraID string, year int) ([]contracts.ProgressRecord, error) {
	var records []contracts.ProgressRecord
	err := c.cache.GetOrSet(ctx, redis.ProgressKey(plan.NormalizeKRAID(kraID), year), &records, c.ttl, func() (interface{}, error) {
		return c.source.Fetch(ctx, kraID, year)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Commit forwards to the wrapped committer and drops the cached snapshots
// of every KRA the contribution touched
func (c *CachedSource) Commit(ctx context.Context, contribution Contribution) error {
	if c.committer == nil {
		return nil
	}

	err := c.committer.Commit(ctx, contribution)
	c.invalidate(ctx, contribution)
	return err
}

func (c *CachedSource) invalidate(ctx context.Context, contribution Contribution) {
	seen := make(map[string]bool)
	var keys []string
	for _, item := range contribution.Items {
		key := redis.ProgressKey(plan.NormalizeKRAID(item.KRAID), contribution.Year)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.WithError(err).Warn("Failed to invalidate progress cache")
	}
}
