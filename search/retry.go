package search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// errRateLimited marks a 429 response that may be retried.
var errRateLimited = errors.New("rate limited")

// doWithBackoff runs send, retrying 429 responses with exponential backoff
// until maxElapsed has passed. Transport errors are not retried.
func doWithBackoff(ctx context.Context, opts Options, send func() (*http.Response, error)) (*http.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInitial
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = opts.MaxRetryElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 30 * time.Second
	}

	return backoff.RetryWithData(func() (*http.Response, error) {
		resp, err := send()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errRateLimited
		}
		return resp, nil
	}, backoff.WithContext(b, ctx))
}
