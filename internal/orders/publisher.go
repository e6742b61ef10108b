package orders

import (
	"context"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// KafkaEvents publishes order lifecycle events. Publishing is best effort:
// a full or closed producer drops the event and logs it. A nil producer
// disables that event type.
type KafkaEvents struct {
	Created       *kafkax.Producer
	StatusChanged *kafkax.Producer
	Service       string
	Log           *slog.Logger
}

func (k *KafkaEvents) OrderCreated(ctx context.Context, o Order, p Product) {
	k.publish(ctx, k.Created, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID,
		GatewayRef: o.GatewayRef,
		ProductID:  p.ID,
		Price:      p.Price.StringFixed(2),
		Currency:   p.Currency,
		PayerEmail: o.PayerEmail,
	})
}

func (k *KafkaEvents) OrderStatusChanged(ctx context.Context, orderID, paymentID string, status Status, observedAt time.Time) {
	k.publish(ctx, k.StatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
		OrderID:    orderID,
		PaymentID:  paymentID,
		Status:     status,
		ObservedAt: observedAt.UTC(),
	})
}

func (k *KafkaEvents) publish(ctx context.Context, p *kafkax.Producer, eventType, orderID string, payload any) {
	if p == nil {
		// producer untuk event ini tidak dipasang
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.Service,
		TraceID:       traceID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	ok := p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if !ok && k.Log != nil {
		k.Log.Warn("event dropped", slog.String("event_type", eventType), slog.String("order_id", orderID))
	}
}

// traceID prefers the active span; without a tracer provider it falls back
// to the chi request id.
func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return middleware.GetReqID(ctx)
}
