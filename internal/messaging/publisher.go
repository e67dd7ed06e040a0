package messaging

import (
	"context"
	"fmt"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
)

// Publisher defines the interface for publishing page events to the message
// broker. Hosts embedding the subsystem in-process use this to feed the
// recorder service.
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a page-management event
	PublishEvent(ctx context.Context, event *domain.PageEvent) error
	// Close closes the connection
	Close()
}

type jetStreamPublisher struct {
	nc      adapter.NatsConn
	js      adapter.JetStream
	json    adapter.JSON
	subject string
}

// NewJetStreamPublisher creates a publisher writing page events to one
// JetStream subject per event type (<prefix>.moved, <prefix>.renamed, ...)
func NewJetStreamPublisher(nc adapter.NatsConn, js adapter.JetStream, jsonAdapter adapter.JSON, subjectPrefix string) Publisher {
	return &jetStreamPublisher{
		nc:      nc,
		js:      js,
		json:    jsonAdapter,
		subject: subjectPrefix,
	}
}

func (p *jetStreamPublisher) PublishEvent(ctx context.Context, event *domain.PageEvent) error {
	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal page event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.subject, event.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish page event: %w", err)
	}
	return nil
}

func (p *jetStreamPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
