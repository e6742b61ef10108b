package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/checkout"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// APIError is a non-2xx answer from Mercado Pago.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: %d %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match any provider failure with checkout.ErrGateway.
func (e *APIError) Unwrap() error { return checkout.ErrGateway }

type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client

	StatementDescriptor string
	PictureURL          string
	NotificationURL     string
	Sandbox             bool // pakai sandbox_init_point
}

func NewClient(accessToken, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

var tracer = otel.Tracer("github.com/ariefcatur/go-checkout-orders/internal/mercadopago")

// CreateIntent creates a checkout preference.
func (c *Client) CreateIntent(ctx context.Context, req checkout.IntentRequest) (checkout.Intent, error) {
	ctx, span := tracer.Start(ctx, "mercadopago.CreatePreference")
	defer span.End()

	body := preferenceRequest{
		Items: []item{{
			ID:          req.Item.ProductID,
			Title:       req.Item.Title,
			Description: req.Item.Description,
			PictureURL:  c.PictureURL,
			Quantity:    req.Item.Quantity,
			UnitPrice:   json.Number(req.Item.UnitPrice.StringFixed(2)),
			CurrencyID:  req.Item.Currency,
		}},
		Payer: payer{
			Name:    req.Buyer.GivenName,
			Surname: req.Buyer.FamilyName,
			Email:   req.Buyer.Email,
			Phone:   phone{AreaCode: req.Buyer.AreaCode, Number: req.Buyer.Number},
		},
		BackURLs: backURLs{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		},
		ExternalReference:   req.ExternalReference,
		StatementDescriptor: c.StatementDescriptor,
		NotificationURL:     c.NotificationURL,
	}
	if req.AutoReturn {
		body.AutoReturn = "approved"
	}

	var pref preference
	// external_reference doubles as the idempotency key, a retried request for
	// the same order returns the same preference.
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req.ExternalReference, body, &pref); err != nil {
		span.RecordError(err)
		return checkout.Intent{}, err
	}
	if pref.ID == "" {
		return checkout.Intent{}, fmt.Errorf("%w: preference without id", checkout.ErrGateway)
	}
	redirect := pref.InitPoint
	if c.Sandbox && pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}
	span.SetAttributes(attribute.String("mercadopago.preference_id", pref.ID))
	return checkout.Intent{GatewayRef: pref.ID, RedirectURL: redirect}, nil
}

// FetchPayment reads the authoritative payment state.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (checkout.PaymentDetail, error) {
	ctx, span := tracer.Start(ctx, "mercadopago.GetPayment")
	defer span.End()
	span.SetAttributes(attribute.String("mercadopago.payment_id", paymentID))

	var p payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), "", nil, &p); err != nil {
		span.RecordError(err)
		return checkout.PaymentDetail{}, err
	}

	d := checkout.PaymentDetail{
		PaymentID:         string(p.ID),
		Status:            p.Status,
		ExternalReference: strings.TrimSpace(p.ExternalReference),
	}
	if d.PaymentID == "" {
		d.PaymentID = paymentID
	}
	if t, err := time.Parse(time.RFC3339Nano, p.DateLastUpdated); err == nil {
		d.UpdatedAt = t.UTC()
	}
	return d, nil
}

func (c *Client) do(ctx context.Context, method, path, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", checkout.ErrGateway, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", checkout.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey == "" && method == http.MethodPost {
		idemKey = uuid.NewString()
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// timeout & network error tetap dilaporkan sebagai gateway error
		return fmt.Errorf("%w: %s %s: %w", checkout.ErrGateway, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", checkout.ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", checkout.ErrGateway, err)
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var e apiErrorBody
	if err := json.Unmarshal(raw, &e); err == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		}
	}
	return fallback
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
