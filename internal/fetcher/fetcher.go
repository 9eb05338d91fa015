// Package fetcher downloads remote JSON payloads and reads tabular inputs
// (CSV, XLSX) for the stop-and-search pipeline.
package fetcher

import (
	"context"
	"fmt"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the body of a 2xx response.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}
