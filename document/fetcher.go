package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 2 * time.Minute
	fetchMaxAttempts    = 3
	fetchBaseDelay      = 500 * time.Millisecond
)

// Fetcher downloads source documents over HTTP.
type Fetcher interface {
	// Fetch downloads the file at url and returns its raw bytes.
	// An empty body is an error; transient failures are retried.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher implements Fetcher using net/http with retry.
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher with a default timeout-bound HTTP client.
//
// Returns Fetcher interface to enforce abstraction.
func NewFetcher() Fetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: defaultFetchTimeout},
		logger: slog.Default().With("component", "fetcher"),
	}
}

// NewFetcherWithClient creates a fetcher using the provided HTTP client.
// Useful for tests with httptest servers.
func NewFetcherWithClient(client *http.Client) Fetcher {
	return &HTTPFetcher{
		client: client,
		logger: slog.Default().With("component", "fetcher"),
	}
}

// Fetch downloads the file at url. Non-2xx responses and empty bodies are
// errors. A non-PDF content type is logged but not rejected; the converter
// decides whether the bytes are usable.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%w: unexpected status %d", ErrDownloadFailed, resp.StatusCode)
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "pdf") &&
			!strings.Contains(contentType, "octet-stream") {
			f.logger.Warn("unexpected content type, proceeding anyway",
				"url", url, "contentType", contentType)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %v", ErrDownloadFailed, err)
		}
		return nil
	}

	if err := RetryWithBackoff(ctx, operation, fetchMaxAttempts, fetchBaseDelay); err != nil {
		f.logger.Error("failed to download file", "url", url, "err", err)
		return nil, err
	}

	if len(data) == 0 {
		f.logger.Error("downloaded file is empty", "url", url)
		return nil, ErrEmptyDownload
	}

	f.logger.Debug("downloaded file", "url", url, "bytes", len(data))
	return data, nil
}
