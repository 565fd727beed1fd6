package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresListenerConfig configures a LISTEN/NOTIFY driver.
type PostgresListenerConfig struct {
	DSN                  string
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	Logger               *zap.Logger
}

// PostgresListener forwards NOTIFY payloads emitted by the notify_table_change
// trigger into a Sink.
type PostgresListener struct {
	cfg  PostgresListenerConfig
	sink Sink
	log  *zap.Logger
}

// NewPostgresListener builds a listener; call Run to start consuming.
func NewPostgresListener(cfg PostgresListenerConfig, sink Sink) *PostgresListener {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = 10 * time.Second
	}
	if cfg.MaxReconnectInterval < cfg.MinReconnectInterval {
		cfg.MaxReconnectInterval = cfg.MinReconnectInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresListener{cfg: cfg, sink: sink, log: log.With(zap.String("component", "pg_change_feed"), zap.String("channel", cfg.Channel))}
}

// Run blocks until ctx is cancelled or the initial LISTEN fails.
func (l *PostgresListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.cfg.DSN, l.cfg.MinReconnectInterval, l.cfg.MaxReconnectInterval, l.onEvent)
	defer listener.Close() //nolint:errcheck

	if err := listener.Listen(l.cfg.Channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.cfg.Channel, err)
	}
	l.log.Info("change feed listening")

	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("change feed stopped")
			return nil
		case n := <-listener.Notify:
			l.handle(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warn("change feed ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// handle converts one notification. pq delivers nil after re-establishing a
// dropped connection; anything may have changed meanwhile, so every view resyncs.
func (l *PostgresListener) handle(n *pq.Notification) {
	if n == nil {
		l.sink.Publish(Event{Op: OpResync})
		return
	}
	e, err := ParseEvent([]byte(n.Extra))
	if err != nil {
		l.log.Warn("dropping malformed change notification", zap.Error(err), zap.String("payload", n.Extra))
		return
	}
	l.sink.Publish(e)
}

func (l *PostgresListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.log.Debug("change feed connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn("change feed disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		l.log.Info("change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Warn("change feed reconnect attempt failed", zap.Error(err))
	}
}
