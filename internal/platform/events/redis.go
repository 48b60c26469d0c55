package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
)

// Channel is the Redis pub/sub channel carrying live stock events.
const Channel = "stock.events"

// RedisPublisher broadcasts stock events over Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher builds a publisher; an empty channel uses Channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = Channel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements inventory.EventPublisher.
func (p *RedisPublisher) Publish(ctx context.Context, evt inventory.StockEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
