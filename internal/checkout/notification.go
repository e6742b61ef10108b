package checkout

const TopicPayment = "payment"

// Notification is the provider-neutral form of an inbound webhook. Provider
// envelope quirks are resolved by the gateway adapter before this point.
type Notification struct {
	Topic     string
	Action    string
	PaymentID string
	RequestID string
}

func (n Notification) IsPayment() bool { return n.Topic == TopicPayment }

type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeStale      Outcome = "stale"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeFetchError Outcome = "fetch_failed"
)

type NotificationResult struct {
	Outcome   Outcome
	PaymentID string
	OrderID   string
	Status    string
}
