package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxPayload caps a single dataset body.
const maxPayload = 256 << 20

// Retriever returns the raw bytes behind a dataset URL.
type Retriever interface {
	Retrieve(ctx context.Context, rawURL string) ([]byte, error)
}

// TooLargeError means a dataset body exceeded the payload cap.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("payload exceeds %d bytes", e.Limit)
}

// StatusError carries a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// HTTPRetriever fetches http(s) URLs. Timeouts are whatever the client has.
type HTTPRetriever struct {
	Client *http.Client
	// MaxBytes caps the body; zero means maxPayload.
	MaxBytes int64
}

// Retrieve issues a GET and returns the body of a 2xx response.
func (r *HTTPRetriever) Retrieve(ctx context.Context, rawURL string) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return readCapped(resp.Body, r.limit())
}

func (r *HTTPRetriever) limit() int64 {
	if r.MaxBytes > 0 {
		return r.MaxBytes
	}
	return maxPayload
}

// readCapped reads at most limit bytes and fails instead of truncating.
func readCapped(rd io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, &TooLargeError{Limit: limit}
	}
	return raw, nil
}

// FileRetriever reads file:// URLs and bare paths. Relative paths resolve
// against Dir.
type FileRetriever struct {
	Dir string
}

// Retrieve reads the file named by rawURL.
func (r *FileRetriever) Retrieve(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(rawURL, "file://")
	if !filepath.IsAbs(path) && r.Dir != "" {
		path = filepath.Join(r.Dir, path)
	}
	return os.ReadFile(path)
}

// SchemeRetriever routes http and https URLs to HTTP and everything else to File.
type SchemeRetriever struct {
	HTTP Retriever
	File Retriever
}

// NewRetriever builds the default scheme router.
func NewRetriever(client *http.Client, dataDir string) *SchemeRetriever {
	return &SchemeRetriever{
		HTTP: &HTTPRetriever{Client: client},
		File: &FileRetriever{Dir: dataDir},
	}
}

// Retrieve dispatches on the URL scheme.
func (r *SchemeRetriever) Retrieve(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return r.HTTP.Retrieve(ctx, rawURL)
	}
	return r.File.Retrieve(ctx, rawURL)
}
