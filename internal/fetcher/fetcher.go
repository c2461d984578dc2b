// Package fetcher downloads remote source datasets over HTTP and FTP.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Multi routes downloads to a scheme-specific fetcher.
type Multi struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// New creates a Multi fetcher covering http(s) and ftp sources.
func New(httpOpts HTTPOptions, ftpOpts FTPOptions) *Multi {
	return &Multi{
		http: NewHTTPFetcher(httpOpts),
		ftp:  NewFTPFetcher(ftpOpts),
	}
}

func (m *Multi) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return m.http, nil
	case "ftp":
		return m.ftp, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// Download fetches the URL with the fetcher matching its scheme.
func (m *Multi) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := m.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile fetches the URL to a local file with the fetcher matching
// its scheme.
func (m *Multi) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	f, err := m.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// IsRemote reports whether the source string names a downloadable URL rather
// than a local path.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}
