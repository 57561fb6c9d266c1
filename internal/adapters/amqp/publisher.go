package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// Default wire routing.
const (
	DefaultExchange   = "MergerPipelineExchange"
	DefaultRoutingKey = "FindNewRecordsRoute"
)

// DefaultPublishTimeout bounds one dial plus publish.
const DefaultPublishTimeout = 30 * time.Second

// SourceHeader carries the feed name a batch came from.
const SourceHeader = "x-recship-source"

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Timeout    time.Duration
	AppID      string
}

// Publisher implements ports.BatchPublisher over AMQP. Every Publish opens its
// own connection and closes it before returning.
type Publisher struct {
	cfg    PublisherConfig
	dialer Dialer
	logger ports.Logger
	now    func() time.Time
}

// NewPublisher creates a publisher. A nil dialer uses NetDialer.
func NewPublisher(cfg PublisherConfig, dialer Dialer, logger ports.Logger) *Publisher {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublishTimeout
	}
	if dialer == nil {
		dialer = NetDialer{ConnectionName: "recship-publisher"}
	}
	return &Publisher{
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
		now:    time.Now,
	}
}

// Publish sends batch as one persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, source string, batch domain.Batch) (err error) {
	if batch.Empty() {
		return nil
	}

	body, err := json.Marshal(batch.Records)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	conn, err := p.dialer.Dial(ctx, p.cfg.URL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			p.logger.Warn("close broker connection", ports.Err(cerr))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			p.logger.Warn("close broker channel", ports.Err(cerr))
		}
	}()

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: ports.RunIDFrom(ctx),
		Timestamp:     p.now().UTC(),
		AppId:         p.cfg.AppID,
		Headers:       amqp.Table{SourceHeader: source},
		Body:          body,
	}
	if err := ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.cfg.Exchange, p.cfg.RoutingKey, err)
	}

	p.logger.Debug("batch published",
		ports.String("exchange", p.cfg.Exchange),
		ports.String("routing_key", p.cfg.RoutingKey),
		ports.String("message_id", msg.MessageId),
		ports.Int("bytes", len(body)),
	)
	return nil
}
