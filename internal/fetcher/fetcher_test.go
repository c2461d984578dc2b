package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected bool
	}{
		{name: "http", src: "http://example.com/data.zip", expected: true},
		{name: "https", src: "https://example.com/data.zip", expected: true},
		{name: "ftp", src: "ftp://ftp.example.com/pub/data.zip", expected: true},
		{name: "absolute path", src: "/data/parcels.csv", expected: false},
		{name: "relative path", src: "data/parcels.csv", expected: false},
		{name: "windows-ish path", src: "C:\\data\\parcels.csv", expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRemote(tt.src))
		})
	}
}

func TestMultiRejectsUnknownScheme(t *testing.T) {
	m := New(HTTPOptions{}, FTPOptions{})
	_, err := m.Download(context.Background(), "gopher://example.com/data")
	assert.Error(t, err)

	_, err = m.DownloadToFile(context.Background(), "file:///etc/passwd", "/tmp/x")
	assert.Error(t, err)
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "test-agent"})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestHTTPDownloadNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})
	_, err := f.Download(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	f := NewHTTPFetcher(HTTPOptions{})
	n, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("file contents")), n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(b))
}

func TestMultiRoutesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("routed"))
	}))
	defer srv.Close()

	m := New(HTTPOptions{}, FTPOptions{})
	body, err := m.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "routed", string(b))
}
