package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (orders.Product, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o orders.Order) error
	UpdateOrderStatus(ctx context.Context, id string, status orders.Status, observedAt time.Time) (bool, error)
}

// Gateway is the hosted payment provider. Implementations must honor ctx
// deadlines and report every failure wrapped in ErrGateway.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	FetchPayment(ctx context.Context, paymentID string) (PaymentDetail, error)
}

// EventSink receives lifecycle events after they are durable. Calls must not
// block the request path.
type EventSink interface {
	OrderCreated(ctx context.Context, o orders.Order, p orders.Product)
	OrderStatusChanged(ctx context.Context, orderID, paymentID string, status orders.Status, observedAt time.Time)
}

type LineItem struct {
	ProductID   string
	Title       string
	Description string
	UnitPrice   decimal.Decimal
	Currency    string
	Quantity    int
}

type Buyer struct {
	GivenName  string
	FamilyName string
	Email      string
	AreaCode   string
	Number     string
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

type IntentRequest struct {
	ExternalReference string // local order id
	Item              LineItem
	Buyer             Buyer
	BackURLs          BackURLs
	AutoReturn        bool
}

type Intent struct {
	GatewayRef  string
	RedirectURL string
}

type PaymentDetail struct {
	PaymentID         string
	Status            string
	ExternalReference string
	UpdatedAt         time.Time // zero when the provider omits it
}
