// Package errors provides error codes for clawprobe
package errors

// ErrorCode represents a clawprobe error code
type ErrorCode string

// Configuration Error Codes
const (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrMissingCredentials indicates missing app credentials
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
)

// Provider Error Codes
const (
	// ErrNetwork indicates the request never produced an HTTP response
	ErrNetwork ErrorCode = "NETWORK_ERROR"

	// ErrHTTPStatus indicates a non-2xx HTTP status from the provider
	ErrHTTPStatus ErrorCode = "HTTP_STATUS_ERROR"

	// ErrAPI indicates an application-level error (non-zero response code)
	ErrAPI ErrorCode = "API_ERROR"

	// ErrTokenRefresh indicates the tenant access token could not be obtained
	ErrTokenRefresh ErrorCode = "TOKEN_REFRESH_FAILED"

	// ErrInvalidResponse indicates a response body that could not be decoded
	ErrInvalidResponse ErrorCode = "INVALID_RESPONSE"

	// ErrRateLimited indicates the local or remote rate limit was hit
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// ErrClientClosed indicates use of a closed client
	ErrClientClosed ErrorCode = "CLIENT_CLOSED"
)

// Storage Error Codes
const (
	// ErrCache indicates a bot-info store failure
	ErrCache ErrorCode = "CACHE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrNetwork:     true,
	ErrRateLimited: true,
}

// IsRetryable reports whether errors with the given code are retryable by default
func IsRetryable(code ErrorCode) bool {
	return retryableCodes[code]
}
