package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/interfacehive/credit-engine/internal/model"
	"github.com/interfacehive/credit-engine/pkg/logger"
	"github.com/interfacehive/credit-engine/pkg/redis"
)

// Delivery is one event read from the stream, together with its redelivery
// count. Handlers that return nil get the delivery acked; a non-nil return
// leaves it pending for the visibility-timeout reclaim. Attempts comes from
// the consumer group's pending-entry bookkeeping, not the payload: it is 0 on
// first delivery and tracks the group's retry counter on every reclaim.
type Delivery struct {
	ID       string
	Event    *model.ContributionEvent
	Attempts int
}

// Handler processes one delivery. Returning nil acks it.
type Handler func(ctx context.Context, d *Delivery) error

type ConsumerConfig struct {
	Stream            string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	EnableDLQ         bool
}

// Consumer reads contribution events through a redis consumer group. Stuck
// deliveries are reclaimed after VisibilityTimeout; deliveries that exhaust
// MaxRetries go to <stream>:dlq and are acked so they stop cycling.
type Consumer struct {
	adapter redis.RedisAdapter
	config  ConsumerConfig
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(adapter redis.RedisAdapter, config ConsumerConfig) (*Consumer, error) {
	if config.Stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "notifier"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on restart is fine
	_ = c.adapter.XGroupCreateMkStream(config.Stream, config.ConsumerGroup, "0")

	return c, nil
}

func (c *Consumer) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	c.handler = handler
	c.wg.Add(1)
	go c.consumeLoop()
	return nil
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.processNew()
			c.reclaimStuck()
		}
	}
}

func (c *Consumer) processNew() {
	messages, err := c.adapter.XReadGroup(
		c.config.ConsumerGroup,
		c.config.ConsumerName,
		c.config.Stream,
		">",
		c.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("[events] read group failed", "stream", c.config.Stream, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		c.handleDelivery(c.toDelivery(streamMsg))
	}
}

func (c *Consumer) reclaimStuck() {
	pending, err := c.adapter.XPendingExt(c.config.Stream, c.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pending) == 0 {
		return
	}

	var ids []string
	retries := make(map[string]int, len(pending))
	for _, p := range pending {
		if p.Idle >= c.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			retries[p.ID] = int(p.RetryCount)
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := c.adapter.XClaim(
		c.config.Stream,
		c.config.ConsumerGroup,
		c.config.ConsumerName,
		c.config.VisibilityTimeout,
		ids...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		d := c.toDelivery(streamMsg)
		// the group's retry counter survives consumer restarts; the stream
		// payload carries no usable attempt count
		d.Attempts = retries[streamMsg.ID]
		c.handleDelivery(d)
	}
}

func (c *Consumer) handleDelivery(d *Delivery) {
	if d.Event == nil {
		// undecodable payload goes straight to the DLQ
		c.moveToDLQ(d, nil)
		_ = c.ack(d.ID)
		return
	}

	if d.Attempts >= c.config.MaxRetries {
		c.moveToDLQ(d, d.Event)
		_ = c.ack(d.ID)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.config.VisibilityTimeout)
	defer cancel()

	if err := c.handler(ctx, d); err != nil {
		logger.Warn("[events] handler failed, will retry",
			"delivery_id", d.ID, "type", d.Event.Type, "attempts", d.Attempts, "error", err)
		return
	}

	_ = c.ack(d.ID)
}

func (c *Consumer) ack(id string) error {
	return c.adapter.XAck(c.config.Stream, c.config.ConsumerGroup, id)
}

func (c *Consumer) moveToDLQ(d *Delivery, event *model.ContributionEvent) {
	if !c.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"original_id": d.ID,
		"attempts":    d.Attempts,
		"failed_at":   time.Now().Unix(),
	}
	if event != nil {
		data, err := json.Marshal(event)
		if err == nil {
			values["data"] = string(data)
			values["type"] = string(event.Type)
		}
	}

	if _, err := c.adapter.XAdd(c.config.Stream+":dlq", values); err != nil {
		logger.Error("[events] dead-letter publish failed", "delivery_id", d.ID, "error", err)
	}
}

func (c *Consumer) toDelivery(streamMsg redis.StreamMessage) *Delivery {
	d := &Delivery{ID: streamMsg.ID}

	if data, ok := streamMsg.Values["data"].(string); ok {
		var event model.ContributionEvent
		if err := json.Unmarshal([]byte(data), &event); err == nil {
			d.Event = &event
		}
	}

	return d
}

func (c *Consumer) Stop(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for consumer to stop")
	}
}

// Lag reports how many entries sit in the stream, acked or not. Exposed for
// the notifier's health endpoint.
func (c *Consumer) Lag() (int64, error) {
	return c.adapter.XLen(c.config.Stream)
}
