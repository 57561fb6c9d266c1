package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
	"github.com/bft-labs/recship/pkg/log"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	depths     map[string]int
	publishErr error
	published  []published
	declared   []string
	closed     bool
}

func (c *fakeChannel) QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.declared = append(c.declared, name)
	n, ok := c.depths[name]
	if !ok {
		return amqp.Queue{}, &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue '" + name + "'"}
	}
	return amqp.Queue{Name: name, Messages: n}, nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange, key, msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct {
	ch     *fakeChannel
	closed bool
}

func (c *fakeConn) Channel() (Channel, error) { return c.ch, nil }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	conns []*fakeConn
	ch    *fakeChannel
	err   error
	urls  []string
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Connection, error) {
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{ch: d.ch}
	d.conns = append(d.conns, c)
	return c, nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	dialer := &fakeDialer{ch: ch}
	p := NewPublisher(PublisherConfig{URL: "amqp://broker"}, dialer, log.NewNoopLogger())
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	batch := domain.Batch{Records: []domain.Record{{ID: "A", Fingerprint: "f1"}, {ID: "B", Fingerprint: "f2"}}}
	ctx := ports.WithRunID(context.Background(), "run-1")
	if err := p.Publish(ctx, "feed.tsv", batch); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	got := ch.published[0]
	if got.exchange != DefaultExchange || got.key != DefaultRoutingKey {
		t.Errorf("routing = %s/%s", got.exchange, got.key)
	}
	if string(got.msg.Body) != `[["A","f1"],["B","f2"]]` {
		t.Errorf("body = %s", got.msg.Body)
	}
	if got.msg.ContentType != "application/json" || got.msg.CorrelationId != "run-1" {
		t.Errorf("message properties = %+v", got.msg)
	}
	if got.msg.MessageId == "" {
		t.Error("message id is empty")
	}
	if !got.msg.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", got.msg.Timestamp, fixed)
	}
	if got.msg.Headers[SourceHeader] != "feed.tsv" {
		t.Errorf("source header = %v", got.msg.Headers[SourceHeader])
	}

	var decoded []domain.Record
	if err := json.Unmarshal(got.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if diff := cmp.Diff(batch.Records, decoded); diff != "" {
		t.Errorf("decoded body mismatch (-want +got):\n%s", diff)
	}

	if !ch.closed || !dialer.conns[0].closed {
		t.Error("channel and connection should be closed after publish")
	}
}

func TestPublisher_ConnectionPerPublish(t *testing.T) {
	dialer := &fakeDialer{ch: &fakeChannel{}}
	p := NewPublisher(PublisherConfig{URL: "amqp://broker"}, dialer, log.NewNoopLogger())
	batch := domain.Batch{Records: []domain.Record{{ID: "A", Fingerprint: "f1"}}}

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), "feed.tsv", batch); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if len(dialer.conns) != 3 {
		t.Fatalf("dialed %d times, want 3", len(dialer.conns))
	}
	for i, c := range dialer.conns {
		if !c.closed {
			t.Errorf("connection %d left open", i)
		}
	}
}

func TestPublisher_Errors(t *testing.T) {
	batch := domain.Batch{Records: []domain.Record{{ID: "A", Fingerprint: "f1"}}}

	t.Run("dial", func(t *testing.T) {
		dialer := &fakeDialer{err: errors.New("connection refused")}
		p := NewPublisher(PublisherConfig{}, dialer, log.NewNoopLogger())
		if err := p.Publish(context.Background(), "f", batch); err == nil {
			t.Fatal("Publish() error = nil, want error")
		}
	})

	t.Run("publish", func(t *testing.T) {
		ch := &fakeChannel{publishErr: amqp.ErrClosed}
		dialer := &fakeDialer{ch: ch}
		p := NewPublisher(PublisherConfig{}, dialer, log.NewNoopLogger())
		err := p.Publish(context.Background(), "f", batch)
		if !errors.Is(err, amqp.ErrClosed) {
			t.Fatalf("Publish() error = %v, want ErrClosed", err)
		}
		if !dialer.conns[0].closed {
			t.Error("connection left open after failed publish")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		dialer := &fakeDialer{ch: &fakeChannel{}}
		p := NewPublisher(PublisherConfig{}, dialer, log.NewNoopLogger())
		if err := p.Publish(context.Background(), "f", domain.Batch{}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(dialer.urls) != 0 {
			t.Error("empty batch should not dial")
		}
	})
}

func TestInspector_QueueDepths(t *testing.T) {
	ch := &fakeChannel{depths: map[string]int{"UpdateRecordsQueue": 12, "ReadRecordsQueue": 40}}
	dialer := &fakeDialer{ch: ch}
	in := NewInspector("amqp://broker", dialer, log.NewNoopLogger())

	got, err := in.QueueDepths(context.Background(), []string{"UpdateRecordsQueue", "ReadRecordsQueue"})
	if err != nil {
		t.Fatalf("QueueDepths() error = %v", err)
	}
	want := map[string]int{"UpdateRecordsQueue": 12, "ReadRecordsQueue": 40}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("depths mismatch (-want +got):\n%s", diff)
	}
	if len(dialer.conns) != 1 || !dialer.conns[0].closed {
		t.Error("expected one connection, closed after the snapshot")
	}
}

func TestInspector_MissingQueue(t *testing.T) {
	ch := &fakeChannel{depths: map[string]int{"UpdateRecordsQueue": 1}}
	in := NewInspector("amqp://broker", &fakeDialer{ch: ch}, log.NewNoopLogger())

	_, err := in.QueueDepths(context.Background(), []string{"UpdateRecordsQueue", "ReadRecordsQueue"})
	var amqpErr *amqp.Error
	if !errors.As(err, &amqpErr) || amqpErr.Code != amqp.NotFound {
		t.Fatalf("QueueDepths() error = %v, want NOT_FOUND", err)
	}
}
