// Package redisbus carries pose updates in and region names and markers out
// over Redis pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/internal/markerwire"
	"github.com/signalsfoundry/regionwatch/internal/observability"
	"github.com/signalsfoundry/regionwatch/model"
)

// PositionHandler consumes decoded positions. core.MembershipService
// satisfies it.
type PositionHandler interface {
	OnPosition(ctx context.Context, p model.Point) (core.MembershipResult, error)
}

// DropRecorder counts messages dropped before classification.
type DropRecorder interface {
	ObserveDropped(reason string)
}

// Channels names the pub/sub channels the bus uses.
type Channels struct {
	Pose   string
	Region string
	Marker string
}

// OpenRedis opens a client for addr. It returns nil when addr is empty so
// callers can treat the bus as disabled.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Bus publishes membership output to Redis and feeds pose messages from Redis
// into a PositionHandler. It implements core.Publisher.
type Bus struct {
	client   *redis.Client
	channels Channels
	log      logging.Logger
	drops    DropRecorder
	tracer   trace.Tracer
}

var _ core.Publisher = (*Bus)(nil)

// Option customises a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// WithDropRecorder counts undecodable and malformed pose messages.
func WithDropRecorder(r DropRecorder) Option {
	return func(b *Bus) { b.drops = r }
}

// New binds a bus to an open client.
func New(client *redis.Client, channels Channels, opts ...Option) (*Bus, error) {
	if client == nil {
		return nil, errors.New("redisbus: client is nil")
	}
	if channels.Pose == "" || channels.Region == "" || channels.Marker == "" {
		return nil, fmt.Errorf("redisbus: every channel must be named, got %+v", channels)
	}
	b := &Bus{
		client:   client,
		channels: channels,
		log:      logging.Noop(),
		tracer:   observability.Tracer(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Channels returns the channel names in use.
func (b *Bus) Channels() Channels { return b.channels }

// PublishRegion implements core.Publisher. The payload is the bare name.
func (b *Bus) PublishRegion(ctx context.Context, name string) error {
	if err := b.client.Publish(ctx, b.channels.Region, name).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channels.Region, err)
	}
	return nil
}

// PublishMarker implements core.Publisher. The payload is the JSON marker
// document.
func (b *Bus) PublishMarker(ctx context.Context, m core.Marker) error {
	payload, err := markerwire.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	if err := b.client.Publish(ctx, b.channels.Marker, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channels.Marker, err)
	}
	return nil
}

// Run subscribes to the pose channel and hands each message to h, one at a
// time, until ctx is cancelled. Bad messages are dropped and counted.
func (b *Bus) Run(ctx context.Context, h PositionHandler) error {
	pubsub := b.client.Subscribe(ctx, b.channels.Pose)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channels.Pose, err)
	}
	b.log.Info(ctx, "listening for poses", logging.String("channel", b.channels.Pose))

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.HandleMessage(ctx, h, []byte(msg.Payload))
		}
	}
}

// HandleMessage decodes one pose payload and classifies it. It reports whether
// the message reached the handler.
func (b *Bus) HandleMessage(ctx context.Context, h PositionHandler, payload []byte) bool {
	ctx, log := logging.WithEventLogger(ctx, b.log.With(logging.String("channel", b.channels.Pose)))
	ctx, span := b.tracer.Start(ctx, "RegionWatch/redis/pose",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "redis"),
			attribute.String("messaging.destination.name", b.channels.Pose),
			attribute.String("event_id", logging.EventIDFromContext(ctx)),
		),
	)
	defer span.End()

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		b.drop(observability.DropDecode)
		span.SetStatus(codes.Error, "decode")
		log.Warn(ctx, "dropping undecodable pose message", logging.Err(err))
		return false
	}
	p, err := core.PositionFromFields(fields)
	if err != nil {
		b.drop(observability.DropMalformed)
		span.SetStatus(codes.Error, "malformed")
		log.Warn(ctx, "dropping malformed pose", logging.Err(err))
		return false
	}

	result, err := h.OnPosition(ctx, p)
	span.SetAttributes(attribute.String("region", result.Name()))
	if err != nil {
		span.RecordError(err)
	}
	return true
}

func (b *Bus) drop(reason string) {
	if b.drops != nil {
		b.drops.ObserveDropped(reason)
	}
}
