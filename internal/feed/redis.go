package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "poll-session:"
	publishTimeout = 5 * time.Second
)

// RedisFeed implements Feed over Redis pub/sub, one channel per session.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFeed creates a Redis-backed change feed.
func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, logger: logger}
}

// Channel returns the Redis channel for a session.
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

// Publish sends ev on its session's channel.
func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return f.client.Publish(ctx, Channel(ev.SessionID), body).Err()
}

// Subscribe subscribes to a session's channel and calls handler for each event.
// go-redis reconnects the subscription on its own; events sent while disconnected are lost.
func (f *RedisFeed) Subscribe(sessionID string, handler func(Event)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := f.client.Subscribe(ctx, Channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("drop malformed feed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}
