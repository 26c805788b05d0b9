package pubsub

import (
	"context"
	"log/slog"

	"userapi/internal/domain/entity"
	"userapi/internal/domain/service"
	"userapi/internal/errors"

	"github.com/nats-io/nats.go"
)

// natsConn is the subset of *nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// natsPublisher publishes user events on a single NATS subject.
type natsPublisher struct {
	conn    natsConn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (service.EventPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("userapi"))
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	logger.Info("NATS publisher initialized",
		slog.String("url", conn.ConnectedUrlRedacted()),
		slog.String("subject", subject),
	)

	return newNATSPublisherWithConn(conn, subject, logger), nil
}

func newNATSPublisherWithConn(conn natsConn, subject string, logger *slog.Logger) *natsPublisher {
	return &natsPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *natsPublisher) PublishUserEvent(ctx context.Context, event *entity.UserEvent) error {
	data, attributes, err := encodeUserEvent(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	for key, value := range attributes {
		msg.Header.Add(key, value)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "nats publish")
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.Wrap(err, "nats flush")
	}

	p.logger.DebugContext(ctx, "[NATS] Event published",
		slog.String("type", string(event.Type)),
		slog.Int64("user_id", event.UserID),
	)

	return nil
}

// Close drains pending messages before closing the connection.
func (p *natsPublisher) Close() error {
	return errors.WithStack(p.conn.Drain())
}
