package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	GatewayRef string `json:"gateway_ref"`
	ProductID  string `json:"product_id"`
	Price      string `json:"price"` // decimal string, e.g. "197.90"
	Currency   string `json:"currency"`
	PayerEmail string `json:"payer_email,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Status     Status    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}
