package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/mergekeeper/internal/config"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
)

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes JSON notifications on <subject>.new and <subject>.moved.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(cfg config.NotifyConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, errors.ConfigError("notify.nats_url is required").Build()
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("mergekeeper"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Build()
	}
	slog.Info("NATS publisher connected", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return newNATSPublisher(nc, cfg.Subject), nil
}

func newNATSPublisher(c conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = "mergekeeper.units"
	}
	return &NATSPublisher{conn: c, subject: subject}
}

func (p *NATSPublisher) PublishNew(ctx context.Context, msg NewUnit) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return p.publish(ctx, p.subject+".new", msg)
}

func (p *NATSPublisher) PublishMoved(ctx context.Context, msg Moved) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return p.publish(ctx, p.subject+".moved", msg)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal notification").Build()
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to publish notification").
			WithContext("subject", subject).
			Retryable().
			Build()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to flush notification").
			WithContext("subject", subject).
			Retryable().
			Build()
	}
	slog.Debug("Published notification", slog.String("subject", subject))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
