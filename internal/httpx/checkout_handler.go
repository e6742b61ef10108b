package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders/internal/mercadopago"
	"github.com/ariefcatur/go-checkout-orders/internal/orders"
	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
)

const (
	maxWebhookBody  = 1 << 20
	maxCheckoutBody = 64 << 10
)

type Checkout interface {
	CreateCheckout(ctx context.Context, req checkout.CheckoutRequest) (checkout.CheckoutResult, error)
	HandlePaymentNotification(ctx context.Context, n checkout.Notification) (checkout.NotificationResult, error)
}

type Products interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (orders.Order, error)
}

// ReplayStore reserves create_preference Idempotency-Keys before the
// checkout runs and replays the first successful response.
type ReplayStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (redisx.Reservation, error)
	Complete(ctx context.Context, key string, body []byte) error
	Release(ctx context.Context, key string) error
}

type CheckoutHandler struct {
	Service  Checkout
	Products Products
	Orders   OrderReader
	Replay   ReplayStore           // optional
	Verifier *mercadopago.Verifier // optional
	Log      *slog.Logger
}

type createPreferenceReq struct {
	ProductID string          `json:"productId"`
	Payer     *checkout.Payer `json:"payer,omitempty"`
}

type createPreferenceResp struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type productResp struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Currency    string      `json:"currency"`
}

type orderResp struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	ProductID string    `json:"product_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Register mounts the routes at the root and under /api, where the
// storefront calls them.
func (h *CheckoutHandler) Register(r chi.Router) {
	routes := func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Post("/create_preference", h.createPreference)
		r.Post("/webhook", h.webhook)
		r.Get("/orders/{id}", h.getOrder)
	}
	routes(r)
	r.Route("/api", routes)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, checkout.HTTPStatus(err), errorResp{Error: publicMessage(err), Kind: checkout.Kind(err)})
}

// publicMessage hides internal error detail from the storefront.
func publicMessage(err error) string {
	switch checkout.HTTPStatus(err) {
	case http.StatusBadRequest, http.StatusNotFound:
		return err.Error()
	}
	if errors.Is(err, checkout.ErrPaymentIntentFailed) {
		return "could not create payment preference"
	}
	return "internal error"
}

func (h *CheckoutHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		h.log().Error("list products failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error", Kind: "internal"})
		return
	}
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, productResp{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Price:       json.Number(p.Price.StringFixed(2)),
			Currency:    p.Currency,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CheckoutHandler) createPreference(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCheckoutBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "unreadable body", Kind: "invalid_request"})
		return
	}
	var req createPreferenceReq
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json", Kind: "invalid_request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	reserved := false
	if idemKey != "" && h.Replay != nil {
		rv, err := h.Replay.Reserve(ctx, idemKey, fingerprint(req))
		switch {
		case err != nil:
			// Redis cuma fast-path; kalau error lanjut proses normal
			h.log().Warn("idempotency reserve failed", slog.String("key", idemKey), slog.Any("err", err))
		case rv.State == redisx.Completed:
			w.Header().Set("Idempotent-Replayed", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(rv.Body)
			return
		case rv.State == redisx.InFlight:
			writeJSON(w, http.StatusConflict, errorResp{Error: "a request with this Idempotency-Key is in progress", Kind: "idempotency_in_flight"})
			return
		case rv.State == redisx.Mismatch:
			writeJSON(w, http.StatusUnprocessableEntity, errorResp{Error: "Idempotency-Key was used with a different request", Kind: "idempotency_key_reused"})
			return
		default:
			reserved = true
		}
	}

	res, err := h.Service.CreateCheckout(ctx, checkout.CheckoutRequest{ProductID: req.ProductID, Payer: req.Payer})
	if err != nil {
		if reserved {
			// lepas key supaya client boleh retry
			if rerr := h.Replay.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				h.log().Warn("idempotency release failed", slog.String("key", idemKey), slog.Any("err", rerr))
			}
		}
		if checkout.HTTPStatus(err) == http.StatusInternalServerError {
			h.log().Error("create preference failed", slog.String("product_id", req.ProductID), slog.Any("err", err))
		}
		writeError(w, err)
		return
	}

	b, _ := json.Marshal(createPreferenceResp{ID: res.GatewayRef, InitPoint: res.RedirectURL})
	b = append(b, '\n')
	if reserved {
		if err := h.Replay.Complete(context.WithoutCancel(ctx), idemKey, b); err != nil {
			h.log().Warn("idempotency complete failed", slog.String("key", idemKey), slog.Any("err", err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// fingerprint binds an Idempotency-Key to the decoded request, so formatting
// differences of the same request still replay.
func fingerprint(req createPreferenceReq) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n, err := mercadopago.ParseRequest(r, body)
	if err != nil {
		h.log().Warn("malformed webhook", slog.Any("err", err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.Verifier.Verify(r, n.PaymentID); err != nil {
		h.log().Warn("webhook rejected", slog.String("payment_id", n.PaymentID), slog.Any("err", err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := h.Service.HandlePaymentNotification(r.Context(), n); err != nil {
		h.log().Error("webhook processing failed", slog.String("payment_id", n.PaymentID), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing id", Kind: "invalid_request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "not found", Kind: "order_not_found"})
		return
	}
	if err != nil {
		h.log().Error("get order failed", slog.String("order_id", orderID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error", Kind: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, orderResp{
		ID:        o.ID,
		Status:    string(o.Status),
		ProductID: o.ProductID,
		UpdatedAt: o.UpdatedAt,
	})
}

func (h *CheckoutHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
