package qbo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrTransport     = errors.New("transport error")
	ErrFault         = errors.New("api fault")
	ErrToken         = errors.New("token error")
)

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired        = errors.New("config is required")
	ErrRealmIDRequired       = errors.New("realm ID is required")
	ErrUnknownEntity         = errors.New("unknown entity")
	ErrEntityIDRequired      = errors.New("entity ID is required")
	ErrNoAccessToken         = errors.New("no access token available")
	ErrNoRefreshToken        = errors.New("no refresh token available")
	ErrRefreshTokenExpired   = errors.New("refresh token has expired")
	ErrNoIDToken             = errors.New("no id token available")
	ErrNoTokenStored         = errors.New("no token stored for realm")
	ErrSigningKeyNotFound    = errors.New("signing key not found in key set")
	ErrUnexpectedResponse    = errors.New("unexpected API response")
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)

// Common fault codes.
const (
	FaultCodeAuthenticationFailed = "3200"
	FaultCodeObjectNotFound       = "610"
	FaultCodeStaleObject          = "5010"
	FaultCodeThrottled            = "3001"
)

// ConfigurationError reports a missing or invalid configuration field. It is
// returned eagerly by constructors, never at call time.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}

	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ValidationError reports malformed query input or request arguments.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}

	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError is a non-2xx response whose body is not a fault envelope. The
// raw response is kept for inspection.
type TransportError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}

	if body == "" {
		return fmt.Sprintf("request failed with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, body)
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// FaultDetail is one entry of a fault envelope.
type FaultDetail struct {
	Message string `json:"Message" yaml:"message"`
	Detail  string `json:"Detail"  yaml:"detail"`
	Code    string `json:"code"    yaml:"code"`
	Element string `json:"element" yaml:"element"`
}

// Error implements the error interface.
func (d *FaultDetail) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s (code: %s)", d.Message, d.Code)
	}

	return fmt.Sprintf("%s: %s (code: %s)", d.Message, d.Detail, d.Code)
}

// Fault is the API's structured error body.
type Fault struct {
	Errors []FaultDetail `json:"Error" yaml:"errors"`
	Type   string        `json:"type"  yaml:"type"`
}

// FaultError is a non-2xx response carrying a parseable fault envelope.
type FaultError struct {
	StatusCode int
	Type       string
	Errors     []FaultDetail
	IntuitTID  string
	Time       string
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	switch len(e.Errors) {
	case 0:
		return fmt.Sprintf("%s fault (status %d)", e.Type, e.StatusCode)
	case 1:
		return fmt.Sprintf("%s fault: %s", e.Type, e.Errors[0].Error())
	default:
		return fmt.Sprintf("%s fault: multiple errors: %v", e.Type, e.Errors)
	}
}

// Is reports whether target is ErrFault.
func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

// FirstError returns the first fault detail or nil.
func (e *FaultError) FirstError() *FaultDetail {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// TokenError reports a missing or unusable token, raised before any network call.
type TokenError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	if e.Err != nil && e.Reason != "" {
		return fmt.Sprintf("token error: %s: %v", e.Reason, e.Err)
	}

	if e.Err != nil {
		return "token error: " + e.Err.Error()
	}

	return "token error: " + e.Reason
}

// Is reports whether target is ErrToken.
func (e *TokenError) Is(target error) bool {
	return target == ErrToken
}

// Unwrap returns the underlying cause.
func (e *TokenError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error is an object-not-found fault.
func IsNotFound(err error) bool {
	return hasFaultCode(err, FaultCodeObjectNotFound)
}

// IsStaleObject checks if the error is a stale SyncToken fault.
func IsStaleObject(err error) bool {
	return hasFaultCode(err, FaultCodeStaleObject)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	if hasFaultCode(err, FaultCodeAuthenticationFailed) {
		return true
	}

	faultErr := &FaultError{}
	if errors.As(err, &faultErr) {
		return faultErr.StatusCode == http.StatusUnauthorized
	}

	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode == http.StatusUnauthorized
	}

	return false
}

func hasFaultCode(err error, code string) bool {
	faultErr := &FaultError{}
	if !errors.As(err, &faultErr) {
		return false
	}

	for _, detail := range faultErr.Errors {
		if detail.Code == code {
			return true
		}
	}

	return false
}

// ParseFault parses a fault envelope from a JSON body. Both the documented
// "Fault" key and the lowercase "fault" variant returned by some endpoints are
// accepted. ok is false when the body carries no fault.
func ParseFault(data []byte) (*Fault, bool) {
	var envelope struct {
		Fault      *Fault `json:"Fault"`
		FaultLower *Fault `json:"fault"`
	}

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return nil, false
	}

	if envelope.Fault != nil {
		return envelope.Fault, true
	}

	if envelope.FaultLower != nil {
		return envelope.FaultLower, true
	}

	return nil, false
}
