package events

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisBridge mirrors dispatched events onto a Redis pub/sub channel so
// other processes can follow ticket activity.
type RedisBridge struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisBridge(client *redis.Client, channel string, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, logger: logger}
}

// Attach subscribes the bridge to every event type. It does nothing without a client.
func (b *RedisBridge) Attach(d Dispatcher) {
	if b == nil || b.client == nil || d == nil {
		return
	}
	d.Subscribe(EventAny, b.forward)
	b.logger.Info("mirroring events to redis", zap.String("channel", b.channel))
}

func (b *RedisBridge) forward(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Encode renders an event as its JSON wire form.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
