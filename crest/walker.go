// Package crest walks the CREST hypermedia graph: every resource is a JSON document
// whose entries are either links to further resources or terminal values.
package crest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
)

const (
	// RootContentType versions the CREST root document.
	RootContentType = "application/vnd.ccp.eve.Api-v3+json"

	// MaxWalkDepth caps the number of hops a single Walk may take.
	MaxWalkDepth = 16

	deprecatedHeaderPrefix = "x-deprecated"
)

// Requester issues HTTP requests. *webclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, rawURL string, opts webclient.Options) (*webclient.Response, error)
}

// Config holds the CREST client settings.
type Config struct {
	BaseURL   string // CREST root, e.g. https://crest-tq.eveonline.com
	Timeout   time.Duration
	UserAgent string
}

// FetchOptions tune a single hop.
type FetchOptions struct {
	// ContentType is sent as Accept when set.
	ContentType string
}

// Walker fetches CREST documents and follows links between them.
type Walker struct {
	cfg    Config
	http   Requester
	logger log.Logger
}

// NewWalker creates a Walker.
func NewWalker(cfg Config, requester Requester, logger log.Logger) *Walker {
	return &Walker{cfg: cfg, http: requester, logger: logger}
}

func parseResourceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrConfiguration, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrConfiguration, raw)
	}
	return u, nil
}

// Endpoints fetches the versioned CREST root document.
func (w *Walker) Endpoints(ctx context.Context, accessToken string) (Document, error) {
	if _, err := parseResourceURL(w.cfg.BaseURL); err != nil {
		w.logger.Error(ctx, `Invalid "CCP_CREST_URL" url`, err)
		return nil, err
	}
	return w.FetchEndpoint(ctx, accessToken, w.cfg.BaseURL, FetchOptions{ContentType: RootContentType})
}

// FetchEndpoint performs a single hop. The timeout flag is checked before headers or body are used.
func (w *Walker) FetchEndpoint(ctx context.Context, accessToken, resourceURL string, opts FetchOptions) (Document, error) {
	u, err := parseResourceURL(resourceURL)
	if err != nil {
		w.logger.Error(ctx, `Invalid "CCP_CREST_URL" url`, err)
		return nil, err
	}

	header := http.Header{
		"Authorization": {"Bearer " + accessToken},
		"Host":          {u.Host},
	}
	if opts.ContentType != "" {
		header.Set("Accept", opts.ContentType)
	}

	timeout := w.cfg.Timeout
	if timeout <= 0 {
		timeout = webclient.DefaultTimeout
	}

	resp, err := w.http.Request(ctx, u.String(), webclient.Options{
		Method:    http.MethodGet,
		Timeout:   timeout,
		UserAgent: w.cfg.UserAgent,
		Header:    header,
	})
	if err != nil {
		w.logger.Error(ctx, "Unable to get endpoint data", err, log.Fields{"url": resourceURL})
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.TimedOut {
		w.logger.Warn(ctx, "Unable to get endpoint data: request timed out", log.Fields{"url": resourceURL})
		return nil, fmt.Errorf("%w: %s", ErrTimeout, resourceURL)
	}

	w.checkResponseHeaders(ctx, resp.Header, resourceURL, opts.ContentType)

	if resp.Body == "" {
		w.logger.Warn(ctx, "Unable to get endpoint data: empty response", log.Fields{
			"url":    resourceURL,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("%w: empty body from %s", ErrProtocol, resourceURL)
	}

	var doc Document
	if err := json.Unmarshal([]byte(resp.Body), &doc); err != nil {
		w.logger.Error(ctx, "Unable to decode endpoint data", err, log.Fields{"url": resourceURL})
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: null document from %s", ErrProtocol, resourceURL)
	}

	return doc, nil
}

// checkResponseHeaders logs deprecated resources. It never fails the hop.
func (w *Walker) checkResponseHeaders(ctx context.Context, header http.Header, resourceURL, contentType string) {
	for name := range header {
		if strings.HasPrefix(strings.ToLower(name), deprecatedHeaderPrefix) {
			w.logger.Warn(ctx, fmt.Sprintf("Resource: %s has been marked as deprecated. %s", resourceURL, contentType), log.Fields{
				"header": name,
				"value":  header.Get(name),
			})
			metrics.ObserveDeprecated()
			return
		}
	}
}

// Walk follows path from doc, one link name per segment.
//
// An empty path returns doc. A link is fetched and the walk continues from the fetched
// document; a terminal value ends the walk and is returned only when it is the last
// segment. The first failed hop ends the walk with that hop's error. A link whose href
// is not an absolute url ends the walk with ErrInvalidLink.
func (w *Walker) Walk(ctx context.Context, accessToken string, doc Document, path []string, opts FetchOptions) (any, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrProtocol)
	}
	if len(path) > MaxWalkDepth {
		return nil, fmt.Errorf("%w: %d segments", ErrWalkTooDeep, len(path))
	}

	current := doc
	for i, name := range path {
		node := current.Node(name)
		switch node.Kind {
		case NodeLink:
			if _, err := parseResourceURL(node.Href); err != nil {
				w.logger.Warn(ctx, fmt.Sprintf("Unable to follow endpoint: %s", name), log.Fields{"href": node.Href})
				return nil, fmt.Errorf("%w: %s: %q", ErrInvalidLink, name, node.Href)
			}
			next, err := w.FetchEndpoint(ctx, accessToken, node.Href, opts)
			if err != nil {
				return nil, err
			}
			current = next
		case NodeLeaf:
			if i < len(path)-1 {
				w.logger.Debug(ctx, "Leaf reached before end of path", log.Fields{
					"segment":   name,
					"remaining": path[i+1:],
				})
				return nil, fmt.Errorf("%w: %s", ErrLeafReached, name)
			}
			return node.Value, nil
		default:
			w.logger.Warn(ctx, fmt.Sprintf("Unable to find endpoint: %s", name))
			return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, name)
		}
	}

	return current, nil
}
