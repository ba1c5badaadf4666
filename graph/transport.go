package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/caffix/cloudflare-roundtripper/cfrt"
	"github.com/gocolly/colly"
	"github.com/zvonler/wallspider/utils"
)

const (
	DefaultBaseURL        = "https://graph.facebook.com/v2.8"
	DefaultUserAgent      = "wallspider/1.0"
	DefaultMaxBodySize    = 10 * 1024 * 1024
	DefaultRequestTimeout = 30 * time.Second
)

// Transport fetches API paths over HTTPS with a colly collector. It is safe
// for concurrent use; each Fetch gets its own collector.
type Transport struct {
	baseURL      string
	userAgent    string
	maxBodySize  int
	timeout      time.Duration
	roundTripper http.RoundTripper
}

type TransportOption func(*Transport)

func WithUserAgent(ua string) TransportOption {
	return func(t *Transport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

func WithMaxBodySize(n int) TransportOption {
	return func(t *Transport) {
		if n > 0 {
			t.maxBodySize = n
		}
	}
}

// WithRequestTimeout bounds each individual request. Zero disables the bound,
// leaving only the caller's context.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithRoundTripper replaces the Cloudflare-aware default round tripper.
func WithRoundTripper(rt http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.roundTripper = rt
	}
}

func NewTransport(baseURL string, opts ...TransportOption) (*Transport, error) {
	base, err := utils.TrimmedURL(baseURL)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		baseURL:     base.String(),
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.roundTripper == nil {
		t.roundTripper, err = cfrt.New(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Transport) BaseURL() string { return t.baseURL }

// contextRoundTripper binds every request a collector sends to ctx, which
// colly's synchronous Visit cannot do on its own.
type contextRoundTripper struct {
	ctx  context.Context
	next http.RoundTripper
}

func (rt contextRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.next.RoundTrip(req.WithContext(rt.ctx))
}

func (t *Transport) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.UserAgent(t.userAgent),
		colly.MaxBodySize(t.maxBodySize),
	)
	collector.WithTransport(contextRoundTripper{ctx: ctx, next: t.roundTripper})
	// colly's client otherwise caps every request at 10s.
	collector.SetRequestTimeout(t.timeout)
	return collector
}

// Fetch issues a GET for path and returns the body of a 2xx response.
func (t *Transport) Fetch(ctx context.Context, path string) ([]byte, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	collector := t.newCollector(ctx)

	var body []byte
	var status int
	var failed *colly.Response

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		body, status = r.Body, r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		failed = r
	})

	if err := collector.Visit(t.baseURL + path); err != nil {
		te := &TransportError{Path: path, Err: err}
		if failed != nil {
			te.StatusCode = failed.StatusCode
			te.APIMessage = apiErrorMessage(failed.Body)
		}
		return nil, te
	}
	// colly truncates at the limit without saying so.
	if len(body) >= t.maxBodySize {
		return nil, &TransportError{
			Path:       path,
			StatusCode: status,
			Err:        fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, t.maxBodySize),
		}
	}
	return body, nil
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func apiErrorMessage(body []byte) string {
	var parsed apiErrorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil || parsed.Error.Message == "" {
		return ""
	}
	if parsed.Error.Type != "" {
		return parsed.Error.Type + ": " + parsed.Error.Message
	}
	return parsed.Error.Message
}
