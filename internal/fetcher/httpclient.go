package fetcher

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

const (
	// defaultTimeout bounds a single attempt when the caller passes zero.
	defaultTimeout = 10 * time.Second
)

// NewHTTPClient creates the HTTP client shared by the JSON API sources.
// Transport-level retries are disabled: Fetch owns the retry budget so the
// number of downstream calls per identifier stays exactly MaxRetries+1.
func NewHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)
}

// GetJSON performs a GET request and decodes a successful JSON body into out.
// Failures are returned as *FetchError.
func GetJSON(ctx context.Context, client *resty.Client, path string, query map[string]string, out any) error {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetExpectResponseContentType("application/json").
		SetResult(out).
		Get(path)

	if err != nil {
		if resp != nil && resp.IsSuccess() {
			return NewValidationError(fmt.Sprintf("failed to decode response: %v", err))
		}
		return ClassifyRequestError(err)
	}

	if !resp.IsSuccess() {
		return ClassifyHTTPError(resp.StatusCode())
	}

	return nil
}
