package fluxpay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrSessionExpired is returned when a refresh exchange fails. The token store
// has been cleared by the time a caller sees it.
var ErrSessionExpired = errors.New("session expired, please sign in again")

// Outcome classifies one HTTP attempt for the send loop.
type Outcome int

const (
	OutcomeOK          Outcome = iota
	OutcomeAuthExpired         // 401 that may be recovered with one refresh
	OutcomeAuthRevoked         // 401 that may not: already retried, or nothing to refresh with
	OutcomeDomain              // any other non-2xx answer from the backend
	OutcomeTransport           // no answer at all
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthExpired:
		return "auth_expired"
	case OutcomeAuthRevoked:
		return "auth_revoked"
	case OutcomeDomain:
		return "domain_error"
	case OutcomeTransport:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// classify maps a transport result to an Outcome. canRefresh reports whether
// this attempt is still allowed to trigger a refresh.
func classify(resp *http.Response, err error, canRefresh bool) Outcome {
	switch {
	case err != nil:
		return OutcomeTransport
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeOK
	case resp.StatusCode == http.StatusUnauthorized && canRefresh:
		return OutcomeAuthExpired
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeAuthRevoked
	default:
		return OutcomeDomain
	}
}

// ErrorKind groups backend rejections by what a caller can do about them.
type ErrorKind int

const (
	KindUnknown      ErrorKind = iota
	KindValidation             // 400
	KindUnauthorized           // 401 the client could not recover from
	KindForbidden              // 403, e.g. frozen account
	KindNotFound               // 404
	KindConflict               // 409: insufficient funds, duplicate, concurrent update
	KindRateLimited            // 429
	KindServer                 // 5xx
)

func kindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("fluxpay: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("fluxpay: request failed with status %d", e.Status)
}

// TransportError means the request never got an HTTP answer.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fluxpay: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type errorBody struct {
	Status      int               `json:"status"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

const maxErrorBody = 64 << 10

// decodeAPIError consumes and closes resp.Body.
func decodeAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		Kind:   kindFromStatus(resp.StatusCode),
		Status: resp.StatusCode,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	apiErr.Message = body.Message
	apiErr.FieldErrors = body.FieldErrors
	return apiErr
}

// ErrorMessage returns the backend's message for err verbatim, or fallback
// when err carries none.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
