package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/moire/internal/moire/engine"
	"github.com/yungbote/moire/internal/moire/system"
)

func TestToAPIError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"param", &system.ParamError{Param: "extent", Reason: "must be a finite number"}, http.StatusBadRequest, "invalid_params"},
		{"mode conflict", fmt.Errorf("download: %w", system.ErrModeConflict), http.StatusConflict, "mode_conflict"},
		{"max bytes", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "request_too_large"},
		{"timeout", fmt.Errorf("%w after 1s", engine.ErrRenderTimeout), http.StatusServiceUnavailable, "render_timeout"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "render_timeout"},
		{"canceled", fmt.Errorf("field: %w", context.Canceled), StatusClientClosedRequest, "client_closed_request"},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := toAPIError(tc.err)
			if ae.Status != tc.status || ae.Code != tc.code {
				t.Fatalf("got %d/%s want %d/%s", ae.Status, ae.Code, tc.status, tc.code)
			}
		})
	}
}
