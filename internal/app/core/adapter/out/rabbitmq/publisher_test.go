package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestPublishSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "ledger_events"}

	if err := p.Publish(context.Background(), "transaction.created", map[string]int{"amount": 5}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ch.exchange != "ledger_events" || ch.key != "transaction.created" {
		t.Fatalf("unexpected routing: %s %s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing: %+v", ch.msg)
	}
	var body map[string]int
	if err := json.Unmarshal(ch.msg.Body, &body); err != nil || body["amount"] != 5 {
		t.Fatalf("unexpected body %s (%v)", ch.msg.Body, err)
	}
}

func TestPublishWrapsErrors(t *testing.T) {
	brokerErr := errors.New("channel closed")
	p := &Publisher{channel: &fakeChannel{err: brokerErr}, exchange: "x"}
	if err := p.Publish(context.Background(), "k", 1); !errors.Is(err, brokerErr) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
	if err := p.Publish(context.Background(), "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
