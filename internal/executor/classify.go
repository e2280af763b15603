package executor

import "strings"

// ErrorKind is the classification assigned to a non-retryable HTTP outcome
// (§4.6 "HTTP 4xx (other) -> non-retryable error_kind ∈ {...}").
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindBadRequest  ErrorKind = "bad_request"
	ErrorKindRetryable   ErrorKind = "retryable"
)

// classifyStatus classifies an HTTP status code per §4.6: 2xx is success
// (caller handles separately), 408/425/429/5xx are retryable, other 4xx map
// to a specific non-retryable error_kind.
func classifyStatus(status int) (retryable bool, kind ErrorKind) {
	switch {
	case status >= 200 && status < 300:
		return false, ErrorKindNone
	case status == 408 || status == 425 || status == 429 || status >= 500:
		return true, ErrorKindRetryable
	case status == 401 || status == 403:
		return false, ErrorKindAuth
	case status == 404:
		return false, ErrorKindNotFound
	case status == 400:
		return false, ErrorKindBadRequest
	case status == 422:
		return false, ErrorKindValidation
	case status >= 400 && status < 500:
		return false, ErrorKindBadRequest
	default:
		return false, ErrorKindBadRequest
	}
}

// isTransientNetworkError heuristically classifies connection-level errors
// as retryable, mirroring the teacher's isReconnectableError
// (internal/tool/registry/registry.go) adapted from MCP transport faults to
// plain net/http transport faults.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "tls handshake"):
		return true
	default:
		return false
	}
}
