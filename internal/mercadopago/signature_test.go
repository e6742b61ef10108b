package mercadopago

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestManifest(t *testing.T) {
	t.Parallel()

	if got := manifest("ABC123", "req-1", "1704908010"); got != "id:abc123;request-id:req-1;ts:1704908010;" {
		t.Fatalf("unexpected manifest %q", got)
	}
	if got := manifest("", "", "1"); got != "ts:1;" {
		t.Fatalf("unexpected manifest %q", got)
	}
}

func TestVerifier(t *testing.T) {
	t.Parallel()

	v := &Verifier{Secret: "s3cret"}
	other := &Verifier{Secret: "other"}

	tests := []struct {
		name      string
		signature string
		target    string
		dataID    string
		wantErr   bool
	}{
		{name: "valid", signature: v.Sign("123", "req-1", "1704908010"), target: "/webhook", dataID: "123"},
		{name: "valid_query_id", signature: v.Sign("123", "req-1", "1704908010"), target: "/webhook?data.id=123&type=payment", dataID: ""},
		{name: "wrong_secret", signature: other.Sign("123", "req-1", "1704908010"), target: "/webhook", dataID: "123", wantErr: true},
		{name: "tampered_id", signature: v.Sign("123", "req-1", "1704908010"), target: "/webhook", dataID: "124", wantErr: true},
		{name: "missing_header", signature: "", target: "/webhook", dataID: "123", wantErr: true},
		{name: "not_hex", signature: "ts=1,v1=zz", target: "/webhook", dataID: "123", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			r.Header.Set("X-Request-Id", "req-1")
			if tt.signature != "" {
				r.Header.Set("X-Signature", tt.signature)
			}
			err := v.Verify(r, tt.dataID)
			if tt.wantErr && !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifierDisabled(t *testing.T) {
	t.Parallel()

	var v *Verifier
	r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	if err := v.Verify(r, "1"); err != nil {
		t.Fatalf("expected nil verifier to accept, got %v", err)
	}
	if err := (&Verifier{}).Verify(r, "1"); err != nil {
		t.Fatalf("expected empty secret to accept, got %v", err)
	}
}
