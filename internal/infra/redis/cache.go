package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/pkg/logger"
)

const (
	// DefaultTTL bounds how stale a served summary can be when an
	// invalidation is lost.
	DefaultTTL = 30 * time.Second

	// KeyPrefix is the prefix for summary cache keys.
	KeyPrefix = "summary:"
)

// SummaryCache is a Redis-backed implementation of ledger.SummaryCache.
// Summaries are stored as JSON under a short TTL and dropped eagerly after
// every ledger mutation.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewSummaryCache creates a summary cache with the default TTL.
func NewSummaryCache(client *redis.Client, log *logger.Logger) *SummaryCache {
	return NewSummaryCacheWithTTL(client, DefaultTTL, log)
}

// NewSummaryCacheWithTTL creates a summary cache with a custom TTL.
func NewSummaryCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *SummaryCache {
	return &SummaryCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "summary_cache"),
	}
}

func summaryKey(budgetID uuid.UUID) string {
	return fmt.Sprintf("%s%s", KeyPrefix, budgetID)
}

// Get retrieves a cached summary. A miss is not an error.
func (c *SummaryCache) Get(ctx context.Context, budgetID uuid.UUID) (*ledger.BudgetSummary, bool, error) {
	val, err := c.client.Get(ctx, summaryKey(budgetID)).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "budget_id", budgetID)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached summary: %w", err)
	}

	var summary ledger.BudgetSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		c.logger.Warn("dropping corrupt summary entry", "budget_id", budgetID, "error", err)
		return nil, false, nil
	}

	c.logger.Debug("cache hit", "budget_id", budgetID)
	return &summary, true, nil
}

// Set stores a summary under the configured TTL.
func (c *SummaryCache) Set(ctx context.Context, budgetID uuid.UUID, summary *ledger.BudgetSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(budgetID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached summary: %w", err)
	}
	return nil
}

// Invalidate drops the budget's cached summary.
func (c *SummaryCache) Invalidate(ctx context.Context, budgetID uuid.UUID) error {
	if err := c.client.Del(ctx, summaryKey(budgetID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}
