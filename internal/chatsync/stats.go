package chatsync

import (
	"context"

	"github.com/eldtechnologies/aidesk/internal/metrics"
	"github.com/eldtechnologies/aidesk/internal/models"
)

// FetchStats reloads the aggregate counts. A call made while another fetch
// is running, or within the stats interval of the last successful fetch, is
// dropped silently. It reports whether a network call was made.
func (c *Core) FetchStats(ctx context.Context) bool {
	c.mu.Lock()
	if c.statsInFlight || (!c.lastStats.IsZero() && c.now().Sub(c.lastStats) < c.statsInterval) {
		c.mu.Unlock()
		metrics.StatsFetchesThrottled.Inc()
		return false
	}
	c.statsInFlight = true
	c.mu.Unlock()

	stats, ok := c.api.Stats(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.statsInFlight = false
	if ok {
		c.stats = stats
		c.lastStats = c.now()
	}
	return true
}

// AIContext returns the AI system prompt and FAQ set.
func (c *Core) AIContext(ctx context.Context) (models.AIContext, bool) {
	return c.api.AIContext(ctx)
}

// UpdateAIContext replaces the AI system prompt and FAQ set.
func (c *Core) UpdateAIContext(ctx context.Context, aiCtx models.AIContext) (models.AIContext, error) {
	return c.api.UpdateAIContext(ctx, aiCtx)
}
