package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
}

// natsConn is the subset of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes events as NATS core messages.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

// NewNATSPublisher connects to the server in cfg. Reconnects are unlimited.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newNATSPublisher(nc, cfg.SubjectPrefix), nil
}

func newNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the NATS subject for event under prefix, e.g.
// fleet.assignments.created.12.40.2024-06-01.
func Subject(prefix string, event AssignmentEvent) string {
	return fmt.Sprintf("%s.%s.%d.%d.%s", prefix, event.Type, event.ID.DriverID, event.ID.VehicleID, event.ID.TravelDate)
}

// Publish sends event and flushes so that server errors surface before ctx
// expires.
func (p *NATSPublisher) Publish(ctx context.Context, event AssignmentEvent) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	subject := Subject(p.prefix, event)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush subject %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.WithError(err).Warn("NATS drain failed")
	}
}
