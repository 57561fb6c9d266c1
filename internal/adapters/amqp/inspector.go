package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bft-labs/recship/internal/ports"
)

// DefaultInspectTimeout bounds one depth snapshot.
const DefaultInspectTimeout = 10 * time.Second

// Inspector implements ports.QueueInspector with passive queue declares.
type Inspector struct {
	url     string
	timeout time.Duration
	dialer  Dialer
	logger  ports.Logger
}

// NewInspector creates an inspector for the broker at url. A nil dialer uses
// NetDialer.
func NewInspector(url string, dialer Dialer, logger ports.Logger) *Inspector {
	if dialer == nil {
		dialer = NetDialer{ConnectionName: "recship-gate"}
	}
	return &Inspector{
		url:     url,
		timeout: DefaultInspectTimeout,
		dialer:  dialer,
		logger:  logger,
	}
}

// QueueDepths returns the ready-message count of each queue. All queues are
// read over one short-lived connection. The broker closes the channel when a
// passive declare names a missing queue, so that case ends the snapshot.
func (i *Inspector) QueueDepths(ctx context.Context, queues []string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	conn, err := i.dialer.Dial(ctx, i.url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			i.logger.Warn("close broker connection", ports.Err(cerr))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	depths := make(map[string]int, len(queues))
	for _, q := range queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := ch.QueueDeclarePassive(q, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("inspect queue %s: %w", q, err)
		}
		depths[q] = info.Messages
	}
	return depths, nil
}
