package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisListener forwards change events published on a Redis channel into a Sink.
// It lets several API instances share one upstream change source.
type RedisListener struct {
	client  *redis.Client
	channel string
	sink    Sink
	log     *zap.Logger
}

// NewRedisListener builds a listener; call Run to start consuming.
func NewRedisListener(client *redis.Client, channel string, sink Sink, logger *zap.Logger) *RedisListener {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisListener{
		client:  client,
		channel: channel,
		sink:    sink,
		log:     logger.With(zap.String("component", "redis_change_feed"), zap.String("channel", channel)),
	}
}

// Run subscribes and forwards messages until ctx is cancelled.
func (l *RedisListener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close() //nolint:errcheck

	// wait for the subscription confirmation so startup errors surface here
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", l.channel, err)
	}
	l.log.Info("change feed listening")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("change feed stopped")
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription %s closed", l.channel)
			}
			l.handle(m.Payload)
		}
	}
}

func (l *RedisListener) handle(payload string) {
	e, err := ParseEvent([]byte(payload))
	if err != nil {
		l.log.Warn("dropping malformed change message", zap.Error(err))
		return
	}
	l.sink.Publish(e)
}

// RedisPublisher writes change events to the channel a RedisListener consumes.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher constructs a publisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends e to every listening instance.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Sink adapts the publisher so a PostgresListener can bridge database
// notifications onto Redis. Publish failures are logged and reported as zero deliveries.
func (p *RedisPublisher) Sink(ctx context.Context, logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &publisherSink{ctx: ctx, pub: p, log: logger}
}

type publisherSink struct {
	ctx context.Context
	pub *RedisPublisher
	log *zap.Logger
}

func (s *publisherSink) Publish(e Event) int {
	if err := s.pub.Publish(s.ctx, e); err != nil {
		s.log.Warn("change event bridge failed", zap.String("table", e.Table), zap.Error(err))
		return 0
	}
	return 1
}
