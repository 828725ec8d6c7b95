package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromFindsWrappedError(t *testing.T) {
	base := WithParam(http.StatusBadRequest, "invalid_params", "extent", errors.New("extent is NaN"))
	wrapped := fmt.Errorf("render: %w", base)

	got := From(wrapped)
	if got != base {
		t.Fatalf("From returned %#v, want the wrapped *Error", got)
	}
	if got.Param != "extent" || got.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error fields: %+v", got)
	}
}

func TestFromDefaultsToInternal(t *testing.T) {
	got := From(errors.New("boom"))
	if got.Status != http.StatusInternalServerError || got.Code != "internal" {
		t.Fatalf("unexpected: %+v", got)
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if got := (&Error{Code: "mode_conflict"}).Error(); got != "mode_conflict" {
		t.Fatalf("got %q", got)
	}
	if got := (&Error{Status: 503}).Error(); got != "api error (503)" {
		t.Fatalf("got %q", got)
	}
	var nilErr *Error
	if nilErr.Error() != "" {
		t.Fatalf("nil error should render empty")
	}
}
