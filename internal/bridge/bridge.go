// Package bridge connects the host's page-event stream to the history
// recorder. The host CMS publishes move, rename and delete events to
// JetStream; the bridge consumes them and replays them against the recorder.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/logger"
	"github.com/pagetrail/pagetrail/internal/pages"
)

// Config holds the configuration for the page-event bridge
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	WorkerPoolSize int
}

// Recorder is the subset of the history recorder the bridge drives
type Recorder interface {
	RecordMove(ctx context.Context, page *domain.Page, previousParentPath, previousName string, previousNames map[domain.LanguageID]string) error
	RecordRename(ctx context.Context, page *domain.Page, previousName string, previousNames map[domain.LanguageID]string) error
	OnPageDeleted(ctx context.Context, page *domain.Page) error
}

// Bridge defines the interface for the page-event bridge
type Bridge interface {
	// Run starts consuming events until the context is canceled
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc       adapter.NatsConn
	js       adapter.JetStream
	recorder Recorder
	repo     pages.Repository
	json     adapter.JSON
	pool     pond.Pool
	config   Config
}

// NewBridge connects to NATS and creates a page-event bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	recorder Recorder,
	repo pages.Repository,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
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

	return &bridge{
		nc:       nc,
		js:       js,
		recorder: recorder,
		repo:     repo,
		json:     jsonAdapter,
		config:   cfg,
	}, nil
}

// Run starts the page-event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting page-event bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	consumer, err := b.createConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	b.pool = pond.NewPool(b.config.WorkerPoolSize, pond.WithContext(ctx))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.InfoCtx(ctx, "Started consuming page events")

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down page-event bridge")
			b.pool.StopAndWait()
			return ctx.Err()
		case msg := <-msgChan:
			b.pool.Submit(func() {
				b.handleMessage(ctx, msg)
			})
		}
	}
}

// createConsumer creates or updates the durable consumer, retrying with
// exponential backoff while the stream is still being provisioned
func (b *bridge) createConsumer(ctx context.Context) (adapter.Consumer, error) {
	consumerConfig := jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		FilterSubject: fmt.Sprintf("%s.>", b.config.SubjectPrefix),
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 5 * time.Minute

	var consumer adapter.Consumer
	operation := func() error {
		c, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, consumerConfig)
		if err != nil {
			return err
		}
		consumer = c
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Consumer creation failed, retrying",
			zap.Error(err), zap.Duration("next_retry_in", next))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return consumer, nil
}

// handleMessage processes a single page event. Unparseable payloads are
// terminated, handler failures are NAKed for redelivery, successes are ACKed.
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var event domain.PageEvent
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to unmarshal page event"))
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	deliveryCount := uint64(0)
	if metadata != nil {
		deliveryCount = metadata.NumDelivered
	}
	logger.InfoCtx(ctx, "Received page event",
		zap.String("type", string(event.Type)),
		zap.Int64("page_id", event.PageID),
		zap.Uint64("delivery_count", deliveryCount),
	)

	if err := b.dispatch(ctx, &event); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to process page event"))
		if err := msg.Nak(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if err := msg.Ack(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
	}
}

// dispatch routes the event to the matching recorder operation
func (b *bridge) dispatch(ctx context.Context, event *domain.PageEvent) error {
	switch event.Type {
	case domain.PageEventMoved, domain.PageEventRenamed:
		page, err := b.repo.GetByID(ctx, event.PageID)
		if err != nil {
			return fmt.Errorf("failed to load page: %w", err)
		}
		if page == nil {
			// The page vanished between the event and now; nothing to record
			logger.WarnCtx(ctx, "Page event for unknown page", zap.Int64("page_id", event.PageID))
			return nil
		}
		if event.Type == domain.PageEventMoved {
			return b.recorder.RecordMove(ctx, page, event.PreviousParentPath, event.PreviousName, event.PreviousNames)
		}
		return b.recorder.RecordRename(ctx, page, event.PreviousName, event.PreviousNames)

	case domain.PageEventDeleted:
		return b.recorder.OnPageDeleted(ctx, &domain.Page{ID: event.PageID})

	default:
		return fmt.Errorf("unknown page event type: %s", event.Type)
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}
	b.nc.Close()
}
