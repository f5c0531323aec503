package input

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"logcsv/internal/config"
	"logcsv/internal/logger"

	"github.com/valyala/fasthttp"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// IsRemote reports whether source names an http(s) URL rather than a local path.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetcher downloads remote exports with config-driven retry logic.
type Fetcher struct {
	client      *fasthttp.Client
	retryPolicy config.RetryPolicy
	maxSize     int64
	log         *logger.Logger
}

// NewFetcher creates a fetcher. maxSize bounds both the response body and the
// decompressed export.
func NewFetcher(retryPolicy config.RetryPolicy, maxSize int64, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Discard()
	}

	return &Fetcher{
		client: &fasthttp.Client{
			Name:                "logcsv",
			ReadTimeout:         retryPolicy.GetTimeout(),
			WriteTimeout:        retryPolicy.GetTimeout(),
			MaxResponseBodySize: int(maxSize),
		},
		retryPolicy: retryPolicy,
		maxSize:     maxSize,
		log:         log,
	}
}

// Fetch downloads url and decodes it like ReadFile does. Transport errors and
// retryable statuses are retried until the policy's attempts run out or ctx ends.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retryPolicy.MaxAttempts; attempt++ {
		if delay := f.retryPolicy.GetRetryDelay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, status, err := f.get(url)
		if err == nil {
			return Decode(body, f.maxSize)
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, f.retryPolicy.MaxAttempts, err)

		if errors.Is(err, fasthttp.ErrBodyTooLarge) {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, url)
		}

		if status != 0 && !isRetryableStatus(status) {
			break
		}

		f.log.Warn("Fetch failed", "url", url, "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("failed to fetch %s: %w", url, lastErr)
}

// get performs one request. A non-zero status is returned with ErrUnexpectedStatusCode.
func (f *Fetcher) get(url string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json, */*;q=0.8")

	if err := f.client.DoTimeout(req, resp, f.retryPolicy.GetTimeout()); err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, status, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, status)
	}

	// Transparent Content-Encoding is separate from a compressed file payload
	body, err := resp.BodyUncompressed()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return append([]byte(nil), body...), fasthttp.StatusOK, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout,
		fasthttp.StatusTooManyRequests,
		fasthttp.StatusRequestTimeout:
		return true
	}

	return false
}
