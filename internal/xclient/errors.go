package xclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dghubble/go-twitter/twitter"
)

// ErrUpstream matches every error produced by a failed API call.
var ErrUpstream = errors.New("upstream api error")

// Kind classifies an API failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindClient      Kind = "client"
	KindServer      Kind = "server"
	KindTransport   Kind = "transport"
)

// rateLimitCode is the v1.1 error code for "Rate limit exceeded".
const rateLimitCode = 88

// APIError is returned when a call fails after the session's retries.
type APIError struct {
	Kind       Kind
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("x api %s error: %v", e.Kind, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("x api %s error (status %d, code %d): %s", e.Kind, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("x api %s error (status %d)", e.Kind, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Is reports ErrUpstream for every APIError.
func (e *APIError) Is(target error) bool { return target == ErrUpstream }

// Retryable reports whether the session retries this failure.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindTransport:
		return true
	default:
		return false
	}
}

func classify(status, code int) Kind {
	switch {
	case status == http.StatusTooManyRequests || status == 420 || code == rateLimitCode:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// decodeAPIError reads and closes resp.Body.
func decodeAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	out := &APIError{StatusCode: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body twitter.APIError
	if err := json.Unmarshal(b, &body); err == nil && len(body.Errors) > 0 {
		out.Code = body.Errors[0].Code
		out.Message = body.Errors[0].Message
	}
	out.Kind = classify(resp.StatusCode, out.Code)
	return out
}
