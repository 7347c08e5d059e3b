package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "meeting:"
	eventTTL      = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance delivery.
type redisPayload struct {
	RoomEvent
	At int64 `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for meeting events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

func channelFor(meetingID uuid.UUID) string {
	return channelPrefix + meetingID.String()
}

// PublishRoomEvent publishes an event to the meeting's Redis channel.
func (r *RedisPubSub) PublishRoomEvent(meetingID uuid.UUID, ev RoomEvent) error {
	body, err := json.Marshal(redisPayload{RoomEvent: ev, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
	defer cancel()
	return r.client.Publish(ctx, channelFor(meetingID), body).Err()
}

// SubscribeRoom subscribes to a meeting's Redis channel and calls handler for each message.
// ctx bounds the subscribe confirmation; the returned cancel stops the subscription.
func (r *RedisPubSub) SubscribeRoom(ctx context.Context, meetingID uuid.UUID, handler func(ev RoomEvent)) (cancel func(), err error) {
	pubsub := r.client.Subscribe(ctx, channelFor(meetingID))
	if _, err = pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	subCtx, cancelSub := context.WithCancel(context.Background())
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("invalid redis payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.RoomEvent)
			}
		}
	}()
	return cancelSub, nil
}
