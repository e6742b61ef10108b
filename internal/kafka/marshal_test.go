package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestUnwrapPayload(t *testing.T) {
	t.Parallel()

	type payload struct {
		OrderID string `json:"order_id"`
	}

	got, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OrderID != "o-1" {
		t.Fatalf("expected o-1, got %q", got.OrderID)
	}

	if _, err := UnwrapPayload[payload](json.RawMessage(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHeaderValue(t *testing.T) {
	t.Parallel()

	hs := []kafka.Header{
		{Key: "x-event-type", Value: []byte("OrderCreated")},
		{Key: "x-event-version", Value: []byte("1")},
	}
	if got := HeaderValue(hs, "x-event-type"); got != "OrderCreated" {
		t.Fatalf("expected OrderCreated, got %q", got)
	}
	if got := HeaderValue(hs, "missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestProducerPublishAfterClose(t *testing.T) {
	t.Parallel()

	p := NewProducer([]string{"127.0.0.1:1"}, "t", 1, nil)
	if !p.Publish([]byte("k"), []byte("v")) {
		t.Fatal("expected first publish to be buffered")
	}
	if p.Publish([]byte("k"), []byte("v")) {
		t.Fatal("expected publish on a full buffer to be dropped")
	}
	p.Close()
	p.Close()
	if p.Publish([]byte("k"), []byte("v")) {
		t.Fatal("expected publish after close to be dropped")
	}
}
