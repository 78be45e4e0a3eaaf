package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pixelframe/pixelframe/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisChannelPrefix = "pixelframe:frame:"

// redisEnvelope wraps an event with the publishing instance ID so an instance
// can skip its own messages when they come back around.
type redisEnvelope struct {
	Instance string `json:"instance"`
	Event    Event  `json:"event"`
}

// Bridge republishes hub events through Redis pub/sub so placements accepted
// on one instance reach viewers connected to another. Losing the Redis
// connection only degrades cross-instance delivery; clients recover through
// the reconnect-and-reconstruct policy.
type Bridge struct {
	client   *redis.Client
	instance string
	cancel   context.CancelFunc
}

// StartBridge connects to Redis, wires the hub's outbound side, and starts the
// inbound subscription loop.
func StartBridge(ctx context.Context, cfg config.RedisConfig, hub *Hub) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if errPing := client.Ping(ctx).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("realtime: redis ping: %w", errPing)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		client:   client,
		instance: uuid.NewString(),
		cancel:   cancel,
	}

	hub.SetBridge(func(ev Event) {
		payload, errMarshal := json.Marshal(redisEnvelope{Instance: b.instance, Event: ev})
		if errMarshal != nil {
			log.Warnf("realtime: marshal bridge event: %v", errMarshal)
			return
		}
		channel := redisChannelPrefix + strconv.FormatUint(ev.FrameID, 10)
		if errPub := client.Publish(runCtx, channel, payload).Err(); errPub != nil {
			log.Warnf("realtime: redis publish: %v", errPub)
		}
	})

	pubsub := client.PSubscribe(runCtx, redisChannelPrefix+"*")
	go b.receive(runCtx, pubsub, hub)
	return b, nil
}

// receive pumps remote events into the local hub.
func (b *Bridge) receive(ctx context.Context, pubsub *redis.PubSub, hub *Hub) {
	defer func() { _ = pubsub.Close() }()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !strings.HasPrefix(msg.Channel, redisChannelPrefix) {
				continue
			}
			var envelope redisEnvelope
			if errUnmarshal := json.Unmarshal([]byte(msg.Payload), &envelope); errUnmarshal != nil {
				log.Warnf("realtime: decode bridge event: %v", errUnmarshal)
				continue
			}
			if envelope.Instance == b.instance {
				continue
			}
			hub.publishLocal(envelope.Event)
		}
	}
}

// Close stops the subscription loop and releases the Redis client.
func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	b.cancel()
	return b.client.Close()
}
