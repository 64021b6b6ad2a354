// internal/analytics/nats.go
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DefaultSubject is the NATS subject finished games are published on.
const DefaultSubject = "multiwordle.games.finished"

// Publisher is the subset of *nats.Conn used by NATSPublisher.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher is a Sink that publishes each summary as JSON on a subject.
type NATSPublisher struct {
	pub     Publisher
	subject string
}

// NewNATSPublisher wraps an existing publisher.
func NewNATSPublisher(pub Publisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{pub: pub, subject: subject}
}

// Record publishes s. ctx is checked before publishing since core NATS publish is buffered.
func (p *NATSPublisher) Record(ctx context.Context, s Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := p.pub.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// ConnectNATS dials url with reconnect handling that logs through logger.
func ConnectNATS(url string, logger logrus.FieldLogger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("multiwordle-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
