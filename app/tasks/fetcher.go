package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/lysyi3m/feedkit/app/logger"
)

const defaultFetchAttempts = 3

// Fetcher downloads feed documents. Server errors and transport failures are
// retried with exponential backoff; client errors are not.
type Fetcher struct {
	client      *resty.Client
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/atom+xml, application/rss+xml, application/rdf+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"),
		maxAttempts: defaultFetchAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.Multiplier = 2
			return b
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body []byte
	attempt := 0

	operation := func() error {
		attempt++

		resp, err := f.client.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("failed to fetch feed: %w", err))
			}
			return fmt.Errorf("failed to fetch feed: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
			body = resp.Body()
			return nil
		case status >= 500 || status == http.StatusTooManyRequests:
			return fmt.Errorf("HTTP error: %s", resp.Status())
		default:
			return backoff.Permanent(fmt.Errorf("HTTP error: %s", resp.Status()))
		}
	}

	notify := func(err error, wait time.Duration) {
		logger.Log.WithFields(logger.Fields{
			"url":     url,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(err).Warn("Fetch failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.maxAttempts-1), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}

	return body, nil
}
