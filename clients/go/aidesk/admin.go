package aidesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// Stats returns aggregate chat counts.
func (c *Client) Stats(ctx context.Context) (models.Stats, bool) {
	body, err := c.read(ctx, "stats", transport.Request{Method: http.MethodGet, Path: "/stats"})
	if err == nil {
		var stats models.Stats
		if err = json.Unmarshal(body, &stats); err == nil {
			return stats, true
		}
		err = fmt.Errorf("stats: %w: %v", models.ErrInvalidPayload, err)
	}
	c.fail("stats", "Failed to load statistics", err)
	return models.Stats{}, false
}

// AIContext returns the AI system prompt and FAQ set.
func (c *Client) AIContext(ctx context.Context) (models.AIContext, bool) {
	body, err := c.read(ctx, "get ai context", transport.Request{Method: http.MethodGet, Path: "/ai/context"})
	if err == nil {
		var aiCtx models.AIContext
		if err = json.Unmarshal(body, &aiCtx); err == nil {
			return aiCtx, true
		}
		err = fmt.Errorf("get ai context: %w: %v", models.ErrInvalidPayload, err)
	}
	c.fail("get ai context", "Failed to load AI context", err)
	return models.AIContext{}, false
}

// UpdateAIContext replaces the AI system prompt and FAQ set.
func (c *Client) UpdateAIContext(ctx context.Context, aiCtx models.AIContext) (models.AIContext, error) {
	body, err := c.write(ctx, "update ai context", transport.Request{
		Method: http.MethodPut,
		Path:   "/ai/context",
		Body:   aiCtx,
	})
	if err != nil {
		c.fail("update ai context", "Failed to save AI context", err)
		return models.AIContext{}, err
	}
	var out models.AIContext
	if err := json.Unmarshal(body, &out); err != nil {
		err = fmt.Errorf("update ai context: %w: %v", models.ErrInvalidPayload, err)
		c.fail("update ai context", "Failed to save AI context", err)
		return models.AIContext{}, err
	}
	return out, nil
}
