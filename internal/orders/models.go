package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is read-only at runtime; the price used for a checkout always comes
// from this record.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

type Order struct {
	ID         string `json:"id"`
	GatewayRef string `json:"gateway_ref"` // preference id dari Mercado Pago
	ProductID  string `json:"product_id"`
	Status     Status `json:"status"` // lihat status.go

	// snapshot data pembeli, tidak pernah diubah setelah insert
	PayerEmail string `json:"payer_email"`
	PayerName  string `json:"payer_name"`
	PayerPhone string `json:"payer_phone"`

	StatusObservedAt *time.Time `json:"status_observed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
