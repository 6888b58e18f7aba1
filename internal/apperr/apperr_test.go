package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_FindsWrappedError(t *testing.T) {
	base := New(KindInsufficientStock, "Insufficient stock for %s in size %s", "Dress", "M")
	wrapped := fmt.Errorf("place order: %w", base)

	if KindOf(wrapped) != KindInsufficientStock {
		t.Fatalf("expected InsufficientStock, got %s", KindOf(wrapped))
	}
	if !Is(wrapped, KindInsufficientStock) {
		t.Fatalf("Is should match")
	}
	if KindOf(errors.New("boom")) != KindStoreUnavailable {
		t.Fatalf("unclassified errors are StoreUnavailable")
	}
	if Is(nil, KindStoreUnavailable) {
		t.Fatalf("nil error has no kind")
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("dynamo down")
	err := Wrap(KindStoreUnavailable, cause, "Failed to create order")
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if err.Message != "Failed to create order" {
		t.Fatalf("message = %q", err.Message)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:         http.StatusBadRequest,
		KindProductUnavailable: http.StatusBadRequest,
		KindInsufficientStock:  http.StatusBadRequest,
		KindInvalidTransition:  http.StatusBadRequest,
		KindUnauthorized:       http.StatusUnauthorized,
		KindForbidden:          http.StatusForbidden,
		KindNotFound:           http.StatusNotFound,
		KindDuplicateRequest:   http.StatusConflict,
		KindStoreUnavailable:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}
