package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultBackoff = 500 * time.Millisecond

// Fetcher downloads feed payloads with a fixed timeout and bounded
// exponential backoff. A feed that stays unreachable is reported as a
// per-property error, never a batch failure.
type Fetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration
	log     *zap.Logger
}

// NewFetcher creates a fetcher. timeout bounds each attempt; retries is the
// total number of attempts.
func NewFetcher(timeout time.Duration, retries int, log *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 1 {
		retries = 3
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: defaultBackoff,
		log:     log,
	}
}

// Fetch downloads the feed at url, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoff << (attempt - 1)
			f.log.Debug("retrying feed fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retryable, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("fetching feed after %d attempts: %w", f.retries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Server-side failures may clear up; client errors will not.
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading feed body: %w", err)
	}
	return body, false, nil
}
