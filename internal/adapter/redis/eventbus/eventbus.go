package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
)

const eventChannelPrefix = "evaluation:events:"

var _ secondary.EventBus = &RedisEventBus{}

// RedisEventBus publishes evaluation events to a per-evaluation Redis
// channel for live consumers. Delivery is fire-and-forget: the
// persisted event sequence is the durable record, this feed is not.
type RedisEventBus struct {
	redisClient *redis.Client
	logger      primary.Logger
}

func New(redisClient *redis.Client, logger primary.Logger) *RedisEventBus {
	return &RedisEventBus{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (b *RedisEventBus) Publish(ctx context.Context, event domain.EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation event: %w", err)
	}

	channel := eventChannelPrefix + event.EvaluationID.String()
	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish evaluation event: %w", err)
	}
	return nil
}

// Subscribe streams the live events of one evaluation until the
// context is cancelled. Events published before the subscription are
// not replayed; use the persisted sequence for history.
func (b *RedisEventBus) Subscribe(ctx context.Context, evaluationID string) (<-chan domain.EvaluationEvent, error) {
	pubsub := b.redisClient.Subscribe(ctx, eventChannelPrefix+evaluationID)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to evaluation events: %w", err)
	}

	out := make(chan domain.EvaluationEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event domain.EvaluationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("Dropping malformed evaluation event", "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
