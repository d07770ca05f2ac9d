package util

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		field          string
		message        string
		cause          error
		expectedString string
	}{
		{
			name:           "with field",
			field:          "routes[0].target",
			message:        "target is required",
			expectedString: "config error at routes[0].target: target is required",
		},
		{
			name:           "without field",
			message:        "invalid configuration",
			expectedString: "config error: invalid configuration",
		},
		{
			name:           "with cause",
			field:          "listen.address",
			message:        "invalid address",
			cause:          errors.New("missing port"),
			expectedString: "config error at listen.address: invalid address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err *ConfigError
			if tt.cause != nil {
				err = NewConfigErrorWithCause(tt.field, tt.message, tt.cause)
			} else {
				err = NewConfigError(tt.field, tt.message)
			}

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.cause, err.Unwrap())
			assert.True(t, errors.Is(err, ErrConfigInvalid))
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("configuration validation failed")
	assert.False(t, err.HasErrors())
	assert.Equal(t, "validation error: configuration validation failed", err.Error())

	err.AddField("routes", "at least one route is required")
	assert.True(t, err.HasErrors())
	assert.Contains(t, err.Error(), "routes:at least one route is required")
	assert.True(t, errors.Is(err, ErrConfigInvalid))

	var nilFields ValidationError
	nilFields.AddField("a", "b")
	assert.Equal(t, "b", nilFields.Fields["a"])
}

func TestDuplicateRouteError(t *testing.T) {
	t.Parallel()

	err := NewDuplicateRouteError("order_route")
	assert.Equal(t, "duplicate route id: order_route", err.Error())
	assert.True(t, errors.Is(err, ErrDuplicateRoute))
	assert.True(t, errors.Is(fmt.Errorf("register: %w", err), ErrDuplicateRoute))
	assert.False(t, errors.Is(err, ErrNoRouteMatched))
}

func TestUpstreamError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewUpstreamError(KindUpstreamUnavailable, "order_route", "http://localhost:9001", 2, cause)

	assert.Equal(t, "upstream_unavailable: route=order_route target=http://localhost:9001 attempts=2: connection refused", err.Error())
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, ErrUpstreamTimeout))
	assert.True(t, errors.Is(err, cause))

	timeoutErr := &UpstreamError{Kind: KindUpstreamTimeout, Route: "r", Target: "t", Attempts: 1, Timeout: time.Second}
	assert.Contains(t, timeoutErr.Error(), "timeout=1s")
	assert.True(t, errors.Is(timeoutErr, ErrUpstreamTimeout))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "route not found", err: NewRouteNotFoundError("GET", "/x"), want: KindNoRouteMatched},
		{name: "wrapped sentinel", err: fmt.Errorf("match: %w", ErrNoRouteMatched), want: KindNoRouteMatched},
		{name: "unauthorized", err: NewUnauthorizedError("missing token", nil), want: KindUnauthorized},
		{name: "upstream timeout", err: NewUpstreamError(KindUpstreamTimeout, "r", "t", 1, nil), want: KindUpstreamTimeout},
		{name: "upstream unavailable", err: NewUpstreamError(KindUpstreamUnavailable, "r", "t", 1, nil), want: KindUpstreamUnavailable},
		{name: "client canceled", err: context.Canceled, want: KindClientCanceled},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "upstream_timeout", KindUpstreamTimeout.String())
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "ctx"))
	err := WrapError(ErrUnauthorized, "auth")
	assert.Equal(t, "auth: unauthorized", err.Error())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
