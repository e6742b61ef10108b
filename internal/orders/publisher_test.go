package orders

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaEventsDropWhenClosed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := kafkax.NewProducer([]string{"127.0.0.1:1"}, TopicOrderCreated, 1, nil)
	p.Close()

	k := &KafkaEvents{
		Created:       p,
		StatusChanged: p,
		Service:       "checkout-api",
		Log:           slog.New(slog.NewTextHandler(&buf, nil)),
	}
	k.OrderCreated(context.Background(),
		Order{ID: "o-1", Status: StatusPending},
		Product{ID: "kit-essencial", Price: decimal.RequireFromString("197.9"), Currency: "BRL"})
	k.OrderStatusChanged(context.Background(), "o-1", "PAY123", StatusApproved, time.Now())

	if got := strings.Count(buf.String(), "event dropped"); got != 2 {
		t.Fatalf("expected 2 dropped events logged, got %d: %s", got, buf.String())
	}
}

func TestTraceIDSource(t *testing.T) {
	t.Parallel()

	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	withSpan := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid}))
	if got := traceID(withSpan); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("span trace id: got %q", got)
	}

	withReqID := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")
	if got := traceID(withReqID); got != "host/abc-000001" {
		t.Fatalf("request id fallback: got %q", got)
	}
	if got := traceID(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestKafkaEventsNilProducerIsNoop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	k := &KafkaEvents{Service: "checkoutctl", Log: slog.New(slog.NewTextHandler(&buf, nil))}
	k.OrderCreated(context.Background(), Order{ID: "o-1"}, Product{ID: "kit-essencial"})
	k.OrderStatusChanged(context.Background(), "o-1", "PAY123", StatusApproved, time.Now())
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged, got %s", buf.String())
	}
}
