package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/config"
	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
)

// emailSubjectPrefix scopes email jobs within the stream; the delivery
// worker consumes notifications.email.>
const emailSubjectPrefix = "notifications.email"

// EmailJob is the payload handed to the email delivery worker
type EmailJob struct {
	RecipientUserID int64                   `json:"recipient_user_id"`
	To              string                  `json:"to"`
	Subject         string                  `json:"subject"`
	Type            domain.NotificationType `json:"type"`
	Vars            map[string]string       `json:"vars,omitempty"`
}

// EmailPublisher enqueues email jobs for asynchronous delivery
type EmailPublisher interface {
	// PublishEmail enqueues one email job
	PublishEmail(ctx context.Context, job *EmailJob) error
	// Close closes the connection
	Close()
}

type emailPublisher struct {
	nc adapter.NatsConn
	js adapter.JetStream
}

// NewEmailPublisher connects to NATS JetStream and ensures the email
// stream exists before any job is published
func NewEmailPublisher(ctx context.Context, cfg config.NATSConfig, natsJS adapter.NatsJetStream) (EmailPublisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{emailSubjectPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure email stream: %w", err)
	}

	return &emailPublisher{nc: nc, js: js}, nil
}

// PublishEmail enqueues one email job under notifications.email.<type>
func (p *emailPublisher) PublishEmail(ctx context.Context, job *EmailJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", emailSubjectPrefix, job.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish email job: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (p *emailPublisher) Close() {
	if p.nc == nil {
		return
	}
	p.nc.Close()
}
