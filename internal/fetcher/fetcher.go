// Package fetcher downloads remote files over HTTP and unpacks ZIP archives.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download returns the body of url. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile stores url at path and returns the bytes written.
	// path is replaced only once the whole body has arrived.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
