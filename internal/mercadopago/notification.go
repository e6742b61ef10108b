package mercadopago

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-checkout-orders/internal/checkout"
)

var ErrMalformedNotification = errors.New("malformed notification")

// envelope covers both delivery styles:
//
//	webhooks: {"type":"payment","action":"payment.updated","data":{"id":"123"}}
//	IPN:      {"topic":"payment","id":123}  (often only as query parameters)
type envelope struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	ID     flexID `json:"id"`
	Data   struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// ParseNotification normalizes a webhook delivery. body may be empty, in
// which case only query parameters are used.
func ParseNotification(body []byte, query url.Values) (checkout.Notification, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return checkout.Notification{}, errors.Join(ErrMalformedNotification, err)
		}
	}

	n := checkout.Notification{
		Topic:     pickTopic(env.Type, env.Topic, query.Get("type"), query.Get("topic")),
		Action:    env.Action,
		PaymentID: firstNonEmpty(string(env.Data.ID), string(env.ID), query.Get("data.id"), query.Get("id")),
	}
	return n, nil
}

// ParseRequest is ParseNotification for an inbound HTTP request whose body
// was already read.
func ParseRequest(r *http.Request, body []byte) (checkout.Notification, error) {
	n, err := ParseNotification(body, r.URL.Query())
	if err != nil {
		return n, err
	}
	n.RequestID = r.Header.Get(headerRequestID)
	return n, nil
}

// pickTopic prefers a "payment" value from any of the candidate fields, so a
// body that carries both type and topic is still recognized.
func pickTopic(candidates ...string) string {
	for _, c := range candidates {
		if c == checkout.TopicPayment {
			return c
		}
	}
	return firstNonEmpty(candidates...)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
