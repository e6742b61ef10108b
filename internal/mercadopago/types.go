package mercadopago

import (
	"encoding/json"
	"strings"
)

// Wire types for the Mercado Pago REST API. Only the fields this service
// reads or writes are modeled.

type preferenceRequest struct {
	Items               []item   `json:"items"`
	Payer               payer    `json:"payer"`
	BackURLs            backURLs `json:"back_urls"`
	AutoReturn          string   `json:"auto_return,omitempty"`
	ExternalReference   string   `json:"external_reference"`
	StatementDescriptor string   `json:"statement_descriptor,omitempty"`
	NotificationURL     string   `json:"notification_url,omitempty"`
}

type item struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	PictureURL  string      `json:"picture_url,omitempty"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	CurrencyID  string      `json:"currency_id"`
}

type payer struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   phone  `json:"phone"`
}

type phone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type payment struct {
	ID                flexID `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
	DateLastUpdated   string `json:"date_last_updated"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
