package orders

import "testing"

func TestStatusIsFinal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Status
		want bool
	}{
		{StatusPending, false},
		{StatusInProcess, false},
		{StatusPendingReview, false},
		{StatusApproved, true},
		{StatusRejected, true},
		{StatusChargedBack, true},
		{Status("something_new"), false},
	}
	for _, tt := range tests {
		if got := tt.s.IsFinal(); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.s, tt.want, got)
		}
	}
}
