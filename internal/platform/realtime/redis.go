package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis pub/sub channel shared by all API instances.
const DefaultChannel = "medconnect:changes"

// RedisBridge publishes changes to Redis and feeds every change received on
// the channel into the local hub, so clients connected to any instance see
// writes made on any other.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger zerolog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, logger: logger}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Publish sends the change to Redis. If Redis is unavailable the change is
// delivered locally so clients on this instance still refresh.
func (b *RedisBridge) Publish(ctx context.Context, change Change) {
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		b.logger.Error().Err(err).Str("table", change.Table).Msg("marshal change")
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("table", change.Table).Msg("redis publish failed, delivering locally")
		b.hub.Deliver(change)
	}
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("realtime redis bridge subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		b.logger.Warn().Err(err).Msg("discarding malformed change")
		return
	}
	b.hub.Deliver(change)
}

// Ping reports Redis reachability for health checks.
func (b *RedisBridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
