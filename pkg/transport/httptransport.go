package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// HTTPStatusError tags a non-2xx/non-206 HTTP response with enough
// information for the retry loop to decide whether it's fatal.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Fatal reports whether this status should abort the download rather than
// be retried: any 4xx other than 416 (Range Not Satisfiable, which can
// legitimately occur against a resource whose size changed).
func (e *HTTPStatusError) Fatal() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusRequestedRangeNotSatisfiable
}

// HTTPTransport reads a remote resource via HTTP range requests.
type HTTPTransport struct {
	URL     string
	Client  *http.Client
	Limiter *rate.Limiter // optional throughput cap shared across requests
}

// NewHTTPTransport builds a transport against url using http.DefaultClient
// unless client is non-nil.
func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPTransport{URL: url, Client: client}
}

// Metadata issues a HEAD request; if that fails or the server doesn't
// answer it usefully, falls back to a Range: 0-0 GET probe.
func (t *HTTPTransport) Metadata(ctx context.Context) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.URL, nil)
	if err == nil {
		resp, herr := t.Client.Do(req)
		if herr == nil {
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return metadataFromHeaders(resp.Header, resp.ContentLength, resp.Header.Get("Accept-Ranges") == "bytes"), nil
			}
		}
	}

	return t.metadataFromZeroRangeProbe(ctx)
}

func (t *HTTPTransport) metadataFromZeroRangeProbe(ctx context.Context) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("transport: building probe request: %w: %w", err, vserrors.ErrTransport)
	}

	req.Header.Set("Range", "bytes=0-0")

	resp, err := t.Client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("transport: probe request failed: %w: %w", err, vserrors.ErrTransport)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		size := parseContentRangeTotal(resp.Header.Get("Content-Range"))

		return metadataFromHeaders(resp.Header, size, true), nil
	case http.StatusOK:
		return metadataFromHeaders(resp.Header, resp.ContentLength, false), nil
	default:
		return Metadata{}, &HTTPStatusError{StatusCode: resp.StatusCode, URL: t.URL}
	}
}

func metadataFromHeaders(h http.Header, size int64, supportsRanges bool) Metadata {
	return Metadata{
		Size:           size,
		SupportsRanges: supportsRanges,
		ContentType:    h.Get("Content-Type"),
		LastModified:   h.Get("Last-Modified"),
		ETag:           h.Get("ETag"),
	}
}

func parseContentRangeTotal(headerValue string) int64 {
	// Format: "bytes 0-0/12345" or "bytes 0-0/*".
	var start, end, total int64

	_, err := fmt.Sscanf(headerValue, "bytes %d-%d/%d", &start, &end, &total)
	if err != nil {
		return -1
	}

	return total
}

// FetchRange performs a single ranged GET. Callers needing retry/backoff
// wrap this with RetryPolicy; FetchRange itself makes exactly one attempt.
func (t *HTTPTransport) FetchRange(ctx context.Context, offset, length int64) (FetchResult, error) {
	start := time.Now()

	if t.Limiter != nil {
		if err := t.Limiter.WaitN(ctx, int(length)); err != nil {
			return FetchResult{}, fmt.Errorf("transport: rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: building range request: %w: %w", err, vserrors.ErrTransport)
	}

	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := t.Client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: range request failed: %w: %w", err, vserrors.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, resp.Body)

		return FetchResult{}, &HTTPStatusError{StatusCode: resp.StatusCode, URL: t.URL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: reading range body: %w: %w", err, vserrors.ErrTransport)
	}

	return FetchResult{
		Data:            data,
		RequestedOffset: offset,
		RequestedLength: length,
		ActualLength:    int64(len(data)),
		StartTime:       start,
		EndTime:         time.Now(),
	}, nil
}
