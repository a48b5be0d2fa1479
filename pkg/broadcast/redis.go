package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel used by the relay
const DefaultChannel = "hcx:events"

const relayQueueSize = 256

// Connect initializes a Redis client from URL or host:port input
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay shares events between node replicas over Redis pub/sub.
// Forward only enqueues; the network publish happens in Run.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	queue   chan Event
	logger  *slog.Logger
}

// NewRedisRelay creates a relay and attaches it to hub as its forwarder
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		hub:     hub,
		queue:   make(chan Event, relayQueueSize),
		logger:  logger.With("component", "redis-relay", "channel", channel),
	}
	hub.SetForwarder(r)
	return r
}

// Forward queues an event for publication. Events are dropped when the
// queue is full.
func (r *RedisRelay) Forward(ev Event) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("relay queue full, event not forwarded", "event", ev.Name)
	}
}

// Run subscribes to the channel and publishes queued events until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed")

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			r.publish(ctx, ev)
		case msg, ok := <-incoming:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.handleMessage(msg.Payload)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, ev Event) {
	payload, err := r.encode(ev)
	if err != nil {
		r.logger.Error("failed to encode event", "event", ev.Name, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("failed to publish event", "event", ev.Name, "error", err)
	}
}

func (r *RedisRelay) encode(ev Event) ([]byte, error) {
	return json.Marshal(relayMessage{Origin: r.origin, Event: ev})
}

// handleMessage delivers events published by other nodes to local subscribers
func (r *RedisRelay) handleMessage(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("ignoring malformed relay message", "error", err)
		return
	}
	if msg.Origin == r.origin {
		return
	}
	r.hub.Deliver(msg.Event)
}
