// Package price fetches fiat quotes for native chain tokens.
package price

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// newRetryClient creates an HTTP client that retries with a fixed backoff
// until the request succeeds or its context is done.
func newRetryClient(timeout, backoff time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = math.MaxInt32
	c.RetryWaitMin = backoff
	c.RetryWaitMax = backoff
	c.Backoff = constantBackoff
	c.CheckRetry = retryUnlessOK
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	c.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logrus.WithFields(logrus.Fields{
				"url":     req.URL.Redacted(),
				"attempt": attempt,
			}).Debug("Retrying price request")
		}
	}
	return c
}

// constantBackoff waits the same interval between every attempt
func constantBackoff(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return min
}

// retryUnlessOK retries transport errors and any non-200 status.
// Cancellation of the request context stops the loop.
func retryUnlessOK(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode != http.StatusOK, nil
}
