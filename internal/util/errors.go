package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a per-request failure.
type ErrorKind string

// Error kinds of the gateway taxonomy.
const (
	KindNone                ErrorKind = ""
	KindNoRouteMatched      ErrorKind = "no_route_matched"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindClientCanceled      ErrorKind = "client_canceled"
	KindInternal            ErrorKind = "internal_gateway_error"
)

// String returns the kind label.
func (k ErrorKind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Common sentinel errors.
var (
	ErrNoRouteMatched      = errors.New("no route matched")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrClientCanceled      = errors.New("client canceled request")
	ErrInternal            = errors.New("internal gateway error")
	ErrDuplicateRoute      = errors.New("duplicate route id")
	ErrConfigInvalid       = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// ValidationError collects per-field validation failures.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s (fields: %v)", e.Message, e.Fields)
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// AddField adds a field error.
func (e *ValidationError) AddField(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field error was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// DuplicateRouteError is returned when a route id is registered twice.
type DuplicateRouteError struct {
	ID string
}

// Error implements the error interface.
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route id: %s", e.ID)
}

// Is checks if the error matches the target.
func (e *DuplicateRouteError) Is(target error) bool {
	if target == ErrDuplicateRoute {
		return true
	}
	_, ok := target.(*DuplicateRouteError)
	return ok
}

// NewDuplicateRouteError creates a new DuplicateRouteError.
func NewDuplicateRouteError(id string) *DuplicateRouteError {
	return &DuplicateRouteError{ID: id}
}

// RouteNotFoundError represents a request no route matched.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route found for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrNoRouteMatched {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Path: path}
}

// UnauthorizedError represents a missing or rejected credential.
type UnauthorizedError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unauthorized: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *UnauthorizedError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UnauthorizedError) Is(target error) bool {
	if target == ErrUnauthorized {
		return true
	}
	_, ok := target.(*UnauthorizedError)
	return ok || errors.Is(e.Cause, target)
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(reason string, cause error) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason, Cause: cause}
}

// UpstreamError is a classified dispatch failure.
type UpstreamError struct {
	Kind     ErrorKind
	Route    string
	Target   string
	Attempts int
	Timeout  time.Duration
	Cause    error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: route=%s target=%s attempts=%d", e.Kind, e.Route, e.Target, e.Attempts)
	if e.Kind == KindUpstreamTimeout && e.Timeout > 0 {
		msg += fmt.Sprintf(" timeout=%v", e.Timeout)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamTimeout:
		return e.Kind == KindUpstreamTimeout
	case ErrUpstreamUnavailable:
		return e.Kind == KindUpstreamUnavailable
	case ErrClientCanceled:
		return e.Kind == KindClientCanceled
	}
	_, ok := target.(*UpstreamError)
	return ok
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(kind ErrorKind, route, target string, attempts int, cause error) *UpstreamError {
	return &UpstreamError{Kind: kind, Route: route, Target: target, Attempts: attempts, Cause: cause}
}

// KindOf classifies err. A nil error has KindNone; anything outside the
// taxonomy is KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Kind
	}

	switch {
	case errors.Is(err, ErrNoRouteMatched):
		return KindNoRouteMatched
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrUpstreamTimeout):
		return KindUpstreamTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrClientCanceled), errors.Is(err, context.Canceled):
		return KindClientCanceled
	default:
		return KindInternal
	}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
