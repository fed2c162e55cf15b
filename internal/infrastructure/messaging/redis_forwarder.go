package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stepup/gradebook/internal/domain/shared"
)

// DefaultChannel is the Redis channel events are published to.
const DefaultChannel = "gradebook:events"

// Envelope is the wire form of an event on the Redis channel.
type Envelope struct {
	ID          string                 `json:"id"`
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// DecodeEnvelope parses a message received from the channel.
func DecodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// RedisForwarder republishes local events on a Redis Pub/Sub channel so
// other processes can follow changes to the gradebook. Subscribe its
// Handle method to a bus with SubscribeAll.
type RedisForwarder struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	timeout    time.Duration
}

// NewRedisForwarder creates a forwarder. An empty channel selects DefaultChannel.
func NewRedisForwarder(client redis.UniversalClient, channel string) *RedisForwarder {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisForwarder{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		timeout:    2 * time.Second,
	}
}

// Channel returns the channel name.
func (f *RedisForwarder) Channel() string {
	return f.channel
}

// InstanceID identifies this process in published envelopes.
func (f *RedisForwarder) InstanceID() string {
	return f.instanceID
}

// Handle implements shared.EventHandler.
func (f *RedisForwarder) Handle(event shared.Event) error {
	env := Envelope{
		ID:          uuid.NewString(),
		InstanceID:  f.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to redis: %w", event.EventType(), err)
	}
	return nil
}
