// Package nats triggers index rebuilds from catalog change events.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Defaults for catalog change events.
const (
	DefaultSubject = "menu.catalog.changed"
	DefaultQueue   = "menudex"
)

// Triggerer schedules an asynchronous rebuild.
type Triggerer interface {
	Trigger()
}

// Options configures the NATS connection.
type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// Connect dials NATS with reconnects enabled; a server that is down at startup is retried.
func Connect(url string, opts Options, logger *zap.Logger) (*nats.Conn, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("menudex"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Subscriber turns every message on the catalog subject into a rebuild trigger.
// Replicas share a queue group, so each event reaches one of them.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	queue   string
	target  Triggerer
	logger  *zap.Logger
}

// NewSubscriber creates a subscriber. Empty subject and queue take the defaults.
func NewSubscriber(conn *nats.Conn, subject, queue string, target Triggerer, logger *zap.Logger) *Subscriber {
	if subject == "" {
		subject = DefaultSubject
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{conn: conn, subject: subject, queue: queue, target: target, logger: logger}
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("Catalog change received",
			zap.String("subject", msg.Subject),
			zap.Int("bytes", len(msg.Data)),
		)
		s.target.Trigger()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", s.subject, err)
	}
	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	return nil
}
