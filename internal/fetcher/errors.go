package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// ErrorType classifies why a call to an upstream API or to the node failed.
type ErrorType string

const (
	// ErrorTypeNetwork: the request never got an answer.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit: the upstream answered 429.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer: the upstream answered 5xx.
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient: the upstream rejected the request with a 4xx other than 429.
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeValidation: a response arrived but did not hold the expected data.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout: the call outlived its deadline.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeRPC: the node answered with a JSON-RPC error object.
	ErrorTypeRPC ErrorType = "rpc"
	// ErrorTypeUnknown: none of the above.
	ErrorTypeUnknown ErrorType = "unknown"
)

// JSON-RPC error codes the node uses for malformed calls. Repeating such a
// call gets the same answer.
const (
	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
)

// FetchError describes one failed upstream call. Code is the HTTP status, or
// the JSON-RPC error code for ErrorTypeRPC.
// Retryable is informational: the retry policy retries every failure, the
// flag only tells operators whether waiting is expected to help.
type FetchError struct {
	Type      ErrorType
	Retryable bool
	Code      int
	Message   string
	Cause     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Type == ErrorTypeRPC:
		return fmt.Sprintf("node rejected call (code %d): %s", e.Code, e.Message)
	case e.Code > 0:
		return fmt.Sprintf("%s failure (HTTP %d): %s", e.Type, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s failure: %s", e.Type, e.Message)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNetworkError wraps a transport failure such as a refused connection.
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   "upstream unreachable",
		Cause:     cause,
	}
}

// NewRateLimitError reports a 429 from an upstream API.
func NewRateLimitError(statusCode int) *FetchError {
	return &FetchError{
		Type:      ErrorTypeRateLimit,
		Retryable: true,
		Code:      statusCode,
		Message:   "upstream is throttling this service",
	}
}

// NewServerError reports a 5xx from an upstream API.
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:      ErrorTypeServer,
		Retryable: true,
		Code:      statusCode,
		Message:   "upstream failed to answer",
	}
}

// NewClientError reports a 4xx the upstream will keep returning.
func NewClientError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeClient,
		Code:    statusCode,
		Message: message,
	}
}

// NewValidationError reports a response that is missing the expected data,
// e.g. a token with no priced pair.
func NewValidationError(message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewTimeoutError wraps a call that ran out of time.
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   "upstream did not answer in time",
		Cause:     cause,
	}
}

// NewRPCError reports a JSON-RPC error object returned by the node. Malformed
// calls are not retryable, anything else (node behind, slot skipped, account
// busy) may clear up.
func NewRPCError(code int, message string, cause error) *FetchError {
	retryable := true
	switch code {
	case rpcCodeInvalidRequest, rpcCodeMethodNotFound, rpcCodeInvalidParams:
		retryable = false
	}
	return &FetchError{
		Type:      ErrorTypeRPC,
		Retryable: retryable,
		Code:      code,
		Message:   message,
		Cause:     cause,
	}
}

// ClassifyRequestError classifies an error returned before any HTTP status
// was received.
func ClassifyRequestError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// ClassifyRPCError classifies an error returned by the solana-go RPC client.
func ClassifyRPCError(err error) *FetchError {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return NewRPCError(rpcErr.Code, rpcErr.Message, err)
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		fe := ClassifyHTTPError(httpErr.Code)
		fe.Cause = err
		return fe
	}

	return ClassifyRequestError(err)
}

// ClassifyHTTPError maps an HTTP status from an upstream API to a FetchError.
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode)
	case statusCode == http.StatusRequestTimeout:
		return &FetchError{
			Type:      ErrorTypeTimeout,
			Retryable: true,
			Code:      statusCode,
			Message:   "upstream gave up waiting for the request",
		}
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("upstream rejected the request with HTTP %d", statusCode))
	default:
		return &FetchError{
			Type:    ErrorTypeUnknown,
			Code:    statusCode,
			Message: fmt.Sprintf("unexpected HTTP status %d", statusCode),
		}
	}
}
