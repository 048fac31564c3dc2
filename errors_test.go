package stripemirror_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperengineering/stripemirror"
)

func TestConfigError(t *testing.T) {
	err := &stripemirror.ConfigError{Field: "STRIPE_SECRET_KEY", Message: "required"}

	if got := err.Error(); got != "config: STRIPE_SECRET_KEY: required" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := fmt.Errorf("startup: %w", err)
	if !errors.Is(wrapped, stripemirror.ErrConfiguration) {
		t.Error("wrapped ConfigError does not match ErrConfiguration")
	}
	if errors.Is(wrapped, stripemirror.ErrForbiddenWrite) {
		t.Error("ConfigError matches ErrForbiddenWrite")
	}
}

func TestAPIError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *stripemirror.APIError
		want string
	}{
		{
			name: "transport",
			err:  &stripemirror.APIError{Operation: "list_products", Err: cause},
			want: "stripe: list_products failed: connection refused",
		},
		{
			name: "stripe message",
			err:  &stripemirror.APIError{Operation: "create_coupons", StatusCode: 400, Type: "invalid_request_error", Message: "Coupon already exists."},
			want: "stripe: create_coupons failed (status 400, invalid_request_error): Coupon already exists.",
		},
		{
			name: "raw body",
			err:  &stripemirror.APIError{Operation: "retrieve_prices", StatusCode: 502, Err: errors.New("HTTP 502: bad gateway")},
			want: "stripe: retrieve_prices failed (status 502): HTTP 502: bad gateway",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	err := fmt.Errorf("copy: %w", &stripemirror.APIError{Operation: "list_products", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("APIError does not unwrap to its cause")
	}
	var apiErr *stripemirror.APIError
	if !errors.As(err, &apiErr) || apiErr.Operation != "list_products" {
		t.Error("errors.As failed for wrapped APIError")
	}
}

func TestSentinelMessages(t *testing.T) {
	for _, err := range []error{
		stripemirror.ErrConfiguration,
		stripemirror.ErrForbiddenWrite,
		stripemirror.ErrMissingDependency,
		stripemirror.ErrUnknownResourceKind,
		stripemirror.ErrSnapshotNotFound,
	} {
		if strings.TrimSpace(err.Error()) == "" {
			t.Errorf("%#v has an empty message", err)
		}
	}
}
