package orders

// Status is stored verbatim as reported by the payment provider. Only
// StatusPending is assigned locally.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusAuthorized    Status = "authorized"
	StatusInProcess     Status = "in_process"
	StatusPendingReview Status = "pending_review"
	StatusInMediation   Status = "in_mediation"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
	StatusRefunded      Status = "refunded"
	StatusChargedBack   Status = "charged_back"
)

var final = map[Status]bool{
	StatusApproved:    true,
	StatusRejected:    true,
	StatusCancelled:   true,
	StatusRefunded:    true,
	StatusChargedBack: true,
}

// IsFinal reports whether the provider treats s as settled. A later
// notification may still overwrite it.
func (s Status) IsFinal() bool { return final[s] }

func (s Status) String() string { return string(s) }
