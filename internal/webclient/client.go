// Package webclient issues timeout-bounded HTTP requests against the SSO and CREST APIs.
// A timeout is reported through Response.TimedOut instead of an error, so callers
// can tell a slow provider apart from a broken request.
package webclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultTimeout bounds every CREST and SSO call.
const DefaultTimeout = 3 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// ErrTransport is returned for failures other than timeouts (DNS, refused connection, bad URL).
var ErrTransport = errors.New("webclient: transport failure")

// Options describes a single request.
type Options struct {
	Method    string
	Timeout   time.Duration
	UserAgent string
	Header    http.Header
	Body      string
}

// Response is the result of a request. Body and Header are empty when TimedOut is set.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	TimedOut   bool
}

// Doer is the subset of *http.Client the adapter needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the HTTP Client Adapter.
type Client struct {
	http Doer
}

// New creates a Client. A nil doer uses a plain http.Client; the per-request timeout
// is enforced through the request context.
func New(doer Doer) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	return &Client{http: doer}
}

// Request performs the call described by opts. It never blocks past opts.Timeout.
func (c *Client) Request(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, span := otel.Tracer("github.com/pilab-dev/shadow-crest/internal/webclient").Start(ctx, "webclient.Request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", rawURL),
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		metrics.ObserveHTTPRequest(method, "error")
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	for name, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if host := opts.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			metrics.ObserveHTTPRequest(method, "timeout")
			span.SetStatus(codes.Error, "timeout")
			return &Response{TimedOut: true, Header: http.Header{}}, nil
		}
		metrics.ObserveHTTPRequest(method, "error")
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if isTimeout(ctx, err) {
			metrics.ObserveHTTPRequest(method, "timeout")
			span.SetStatus(codes.Error, "timeout")
			return &Response{TimedOut: true, Header: http.Header{}}, nil
		}
		metrics.ObserveHTTPRequest(method, "error")
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	metrics.ObserveHTTPRequest(method, "ok")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(data),
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
