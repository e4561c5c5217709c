package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/redis"
)

// Publisher writes contribution events to a redis stream. Publishing happens
// after the database transaction commits and is fire-and-forget from the
// caller's point of view: a failed publish never undoes a decision.
type Publisher struct {
	adapter redis.RedisAdapter
	stream  string
	maxLen  int64
}

func NewPublisher(adapter redis.RedisAdapter, stream string, maxLen int64) (*Publisher, error) {
	if stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	return &Publisher{
		adapter: adapter,
		stream:  stream,
		maxLen:  maxLen,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event *model.ContributionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	values := map[string]interface{}{
		"data":      string(data),
		"type":      string(event.Type),
		"timestamp": event.OccurredAt.Unix(),
	}

	if _, err := p.adapter.XAdd(p.stream, values); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	if p.maxLen > 0 {
		_ = p.adapter.XTrimApprox(p.stream, p.maxLen)
	}

	return nil
}
