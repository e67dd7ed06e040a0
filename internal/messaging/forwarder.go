package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/pages"
)

// Forwarder turns page lifecycle hooks into published events. Hosts that run
// the recorder as a separate service attach it to their hook registry so
// every page mutation reaches the event stream.
type Forwarder struct {
	publisher Publisher
	clock     adapter.Clock
}

// NewForwarder creates a hook-to-event forwarder
func NewForwarder(publisher Publisher, clock adapter.Clock) *Forwarder {
	return &Forwarder{publisher: publisher, clock: clock}
}

// Attach subscribes the forwarder to page lifecycle events. Publish errors
// are logged, never propagated: a broker outage must not break the host's
// page mutation.
func (f *Forwarder) Attach(hooks *pages.Hooks) {
	hooks.OnMoved(func(ctx context.Context, event pages.Moved) {
		f.publish(ctx, &domain.PageEvent{
			Type:               domain.PageEventMoved,
			PageID:             event.Page.ID,
			PreviousParentPath: event.PreviousParentPath,
			PreviousName:       event.PreviousName,
			PreviousNames:      event.PreviousNames,
			Timestamp:          f.clock.Now(),
		})
	})
	hooks.OnRenamed(func(ctx context.Context, event pages.Renamed) {
		f.publish(ctx, &domain.PageEvent{
			Type:          domain.PageEventRenamed,
			PageID:        event.Page.ID,
			PreviousName:  event.PreviousName,
			PreviousNames: event.PreviousNames,
			Timestamp:     f.clock.Now(),
		})
	})
	hooks.OnDeleted(func(ctx context.Context, event pages.Deleted) {
		f.publish(ctx, &domain.PageEvent{
			Type:      domain.PageEventDeleted,
			PageID:    event.Page.ID,
			Timestamp: f.clock.Now(),
		})
	})
}

func (f *Forwarder) publish(ctx context.Context, event *domain.PageEvent) {
	if err := f.publisher.PublishEvent(ctx, event); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Failed to publish page event"),
			zap.String("type", string(event.Type)),
			zap.Int64("page_id", event.PageID))
	}
}
