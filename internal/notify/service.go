package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-checkout-orders/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper is checked before an event is handled and marked only after it
// was handled, so an attempt that failed halfway is not skipped on redelivery.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Service turns order lifecycle events into fulfillment hand-off log lines.
type Service struct {
	Dedup Deduper
	Log   *slog.Logger
}

// HandleEvent dipasang sebagai handler consumer.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m.Headers, "x-event-type"); t != "" &&
		t != orders.EventOrderCreated && t != orders.EventOrderStatusChanged {
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah sukses, log lalu commit
		s.Log.Error("undecodable event", slog.Int64("offset", m.Offset), slog.Any("err", err))
		return nil
	}

	dedup := env.EventID != "" && s.Dedup != nil
	if dedup {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if seen {
			return nil
		}
	}

	s.dispatch(env)

	if dedup {
		// hand-off sudah terjadi; gagal mark paling buruk bikin log dobel
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			s.Log.Warn("dedup mark failed", slog.String("event_id", env.EventID), slog.Any("err", err))
		}
	}
	return nil
}

func (s *Service) dispatch(env orders.Envelope) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			s.Log.Error("undecodable payload", slog.String("event_id", env.EventID), slog.Any("err", err))
			return
		}
		s.Log.Info("order awaiting payment",
			slog.String("order_id", p.OrderID),
			slog.String("product_id", p.ProductID),
			slog.String("amount", p.Price+" "+p.Currency))

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			s.Log.Error("undecodable payload", slog.String("event_id", env.EventID), slog.Any("err", err))
			return
		}
		switch {
		case p.Status == orders.StatusApproved:
			s.Log.Info("order ready for fulfillment",
				slog.String("order_id", p.OrderID), slog.String("payment_id", p.PaymentID))
		case p.Status.IsFinal():
			s.Log.Warn("order closed without fulfillment",
				slog.String("order_id", p.OrderID), slog.String("status", p.Status.String()))
		default:
			s.Log.Info("order payment in progress",
				slog.String("order_id", p.OrderID), slog.String("status", p.Status.String()))
		}
	}
}
