package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote payloads.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// must close the returned ReadCloser.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
