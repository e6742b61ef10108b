package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// persistTimeout bounds the order insert, which runs detached from the
// caller's context once an intent exists at the provider.
const persistTimeout = 5 * time.Second

type Recorder interface {
	ObserveCheckout(result string)
	ObserveNotification(outcome string)
}

// Service is the order orchestrator. It keeps no state between calls; every
// dependency is injected by the caller.
type Service struct {
	Catalog Catalog
	Orders  OrderStore
	Gateway Gateway
	Events  EventSink // optional
	Metrics Recorder  // optional
	Log     *slog.Logger

	// FrontendURL is the storefront base; back URLs are derived from it.
	FrontendURL string

	Now   func() time.Time
	NewID func() string
}

type CheckoutRequest struct {
	ProductID string `json:"productId"`
	Payer     *Payer `json:"payer,omitempty"`
}

type CheckoutResult struct {
	OrderID     string
	GatewayRef  string
	RedirectURL string

	// Persisted is false when the intent exists at the provider but the local
	// order could not be written (orphan intent). PersistErr carries the cause.
	Persisted  bool
	PersistErr error
}

var tracer = otel.Tracer("github.com/ariefcatur/go-checkout-orders/internal/checkout")

func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (res CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "CreateCheckout")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Kind(err))
		}
		span.End()
		s.observeCheckout(res, err)
	}()

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	span.SetAttributes(attribute.String("product.id", productID))

	// harga selalu dari catalog, bukan dari client
	product, err := s.Catalog.GetProduct(ctx, productID)
	if errors.Is(err, orders.ErrProductNotFound) {
		return CheckoutResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("load product %s: %w", productID, err)
	}

	orderID := s.newID()
	span.SetAttributes(attribute.String("order.id", orderID))

	intent, err := s.Gateway.CreateIntent(ctx, s.intentRequest(orderID, product, req.Payer))
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: %w", ErrPaymentIntentFailed, err)
	}

	now := s.now()
	order := orders.Order{
		ID:         orderID,
		GatewayRef: intent.GatewayRef,
		ProductID:  product.ID,
		Status:     orders.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Payer != nil {
		order.PayerEmail = req.Payer.Email
		order.PayerName = req.Payer.Name
		order.PayerPhone = req.Payer.Phone
	}

	res = CheckoutResult{
		OrderID:     orderID,
		GatewayRef:  intent.GatewayRef,
		RedirectURL: intent.RedirectURL,
	}

	// The customer already holds a valid intent at this point, so the insert
	// must not depend on the HTTP client staying connected.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if perr := s.Orders.CreateOrder(pctx, order); perr != nil {
		res.PersistErr = fmt.Errorf("%w: %w", ErrOrderPersistence, perr)
		s.log().Warn("order not persisted after payment intent",
			slog.Bool("orphan_intent", true),
			slog.String("order_id", orderID),
			slog.String("gateway_ref", intent.GatewayRef),
			slog.String("product_id", product.ID),
			slog.Any("err", perr),
		)
		span.AddEvent("orphan_intent")
		return res, nil
	}
	res.Persisted = true

	s.log().Info("checkout created",
		slog.String("order_id", orderID),
		slog.String("product_id", product.ID),
		slog.String("gateway_ref", intent.GatewayRef),
	)
	if s.Events != nil {
		s.Events.OrderCreated(ctx, order, product)
	}
	return res, nil
}

func (s *Service) intentRequest(orderID string, p orders.Product, payer *Payer) IntentRequest {
	base := strings.TrimRight(s.FrontendURL, "/") + "/index.html?status="
	return IntentRequest{
		ExternalReference: orderID,
		Item: LineItem{
			ProductID:   p.ID,
			Title:       p.Title,
			Description: p.Description,
			UnitPrice:   p.Price,
			Currency:    p.Currency,
			Quantity:    1,
		},
		Buyer: buyerFrom(payer),
		BackURLs: BackURLs{
			Success: base + "success",
			Failure: base + "failure",
			Pending: base + "pending",
		},
		AutoReturn: true,
	}
}

// HandlePaymentNotification reconciles one webhook delivery. Only faults of
// the local store are returned as errors; everything else is acknowledged so
// the provider does not keep redelivering.
func (s *Service) HandlePaymentNotification(ctx context.Context, n Notification) (res NotificationResult, err error) {
	ctx, span := tracer.Start(ctx, "HandlePaymentNotification")
	defer func() {
		span.SetAttributes(attribute.String("notification.outcome", string(res.Outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal")
		}
		span.End()
		if s.Metrics != nil {
			outcome := string(res.Outcome)
			if err != nil {
				outcome = "error"
			}
			s.Metrics.ObserveNotification(outcome)
		}
	}()

	res.PaymentID = n.PaymentID
	log := s.log().With(slog.String("payment_id", n.PaymentID), slog.String("topic", n.Topic))

	if !n.IsPayment() {
		log.Debug("notification ignored", slog.String("action", n.Action))
		res.Outcome = OutcomeIgnored
		return res, nil
	}
	if n.PaymentID == "" {
		log.Warn("payment notification without id", slog.Any("err", ErrUnresolvedNotification))
		res.Outcome = OutcomeUnresolved
		return res, nil
	}

	// status di body webhook tidak dipercaya, selalu fetch ulang
	detail, err := s.Gateway.FetchPayment(ctx, n.PaymentID)
	if err != nil {
		log.Error("fetch payment failed", slog.Any("err", err))
		res.Outcome = OutcomeFetchError
		return res, nil
	}
	res.Status = detail.Status
	res.OrderID = detail.ExternalReference

	if detail.ExternalReference == "" || detail.Status == "" {
		log.Warn("payment cannot be correlated to an order",
			slog.String("status", detail.Status), slog.Any("err", ErrUnresolvedNotification))
		res.Outcome = OutcomeUnresolved
		return res, nil
	}

	observedAt := detail.UpdatedAt
	if observedAt.IsZero() {
		observedAt = s.now()
	}
	status := orders.Status(detail.Status)
	applied, err := s.Orders.UpdateOrderStatus(ctx, detail.ExternalReference, status, observedAt)
	if errors.Is(err, orders.ErrOrderNotFound) {
		log.Warn("payment references unknown order",
			slog.String("order_id", detail.ExternalReference),
			slog.String("status", detail.Status),
			slog.Any("err", ErrUnresolvedNotification))
		res.Outcome = OutcomeUnresolved
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("update order %s: %w", detail.ExternalReference, err)
	}
	if !applied {
		log.Info("stale payment notification skipped",
			slog.String("order_id", detail.ExternalReference), slog.String("status", detail.Status))
		res.Outcome = OutcomeStale
		return res, nil
	}

	log.Info("order status updated",
		slog.String("order_id", detail.ExternalReference), slog.String("status", detail.Status))
	res.Outcome = OutcomeApplied
	if s.Events != nil {
		s.Events.OrderStatusChanged(ctx, detail.ExternalReference, n.PaymentID, status, observedAt)
	}
	return res, nil
}

func (s *Service) observeCheckout(res CheckoutResult, err error) {
	if s.Metrics == nil {
		return
	}
	switch {
	case err != nil:
		s.Metrics.ObserveCheckout(Kind(err))
	case !res.Persisted:
		s.Metrics.ObserveCheckout("orphan_intent")
	default:
		s.Metrics.ObserveCheckout("created")
	}
}

func (s *Service) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}
