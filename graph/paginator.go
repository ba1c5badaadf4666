package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zvonler/wallspider/logging"
	"github.com/zvonler/wallspider/model"
)

const DefaultMaxPages = 500

// Fetcher issues one GET for a path relative to the API base and returns the
// raw response body.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, path string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// Paginator follows paging.next cursors until the server stops supplying
// them. Pages are fetched strictly in sequence.
type Paginator struct {
	fetcher       Fetcher
	maxPages      int
	delay         time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	logger        *slog.Logger
}

type PaginatorOption func(*Paginator)

// WithMaxPages caps the pages fetched per crawl. Values below one are ignored.
func WithMaxPages(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithPageDelay waits d between consecutive page requests.
func WithPageDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) {
		p.delay = d
	}
}

// WithRetries retries retryable transport failures up to n times with
// exponential backoff starting at initial.
func WithRetries(n int, initial time.Duration) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxRetries = uint64(n)
		}
		if initial > 0 {
			p.retryInterval = initial
		}
	}
}

func WithPaginatorLogger(logger *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		p.logger = logger
	}
}

func NewPaginator(fetcher Fetcher, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		fetcher:       fetcher,
		maxPages:      DefaultMaxPages,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	return p
}

// Paginate fetches initialPath and every page its cursors lead to, returning
// the pages in request order. Any failure discards the pages gathered so far.
func (p *Paginator) Paginate(ctx context.Context, initialPath string) ([]model.RawPage, error) {
	logger := loggerFrom(ctx, p.logger)

	var pages []model.RawPage
	requested := make(map[string]bool)

	for path := initialPath; path != ""; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(pages) >= p.maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrPageLimit, p.maxPages)
		}
		if requested[path] {
			return nil, &MalformedResponseError{Path: path, Reason: "cursor loop", Err: ErrCursorLoop}
		}
		requested[path] = true

		if len(pages) > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.delay):
			}
		}

		logger.Debug("fetching page", "page", len(pages)+1, "path", path)
		page, err := p.fetchPage(ctx, path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		logger.Debug("fetched page", "page", len(pages), "items", len(page.Data))

		path = ""
		if next := page.Next(); next != "" {
			if path, err = CursorPath(next); err != nil {
				return nil, &MalformedResponseError{Path: next, Reason: "unusable paging.next", Err: err}
			}
		}
	}

	return pages, nil
}

func (p *Paginator) fetchPage(ctx context.Context, path string) (model.RawPage, error) {
	var body []byte
	operation := func() (err error) {
		body, err = p.fetcher.Fetch(ctx, path)
		if err == nil {
			return nil
		}
		var te *TransportError
		if ctx.Err() != nil || !errors.As(err, &te) || !te.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if p.maxRetries == 0 {
		err = operation()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	} else {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = p.retryInterval
		policy.MaxElapsedTime = 0
		err = backoff.RetryNotify(operation,
			backoff.WithContext(backoff.WithMaxRetries(policy, p.maxRetries), ctx),
			func(err error, wait time.Duration) {
				loggerFrom(ctx, p.logger).Warn("retrying page", "path", path, "wait", wait, "error", err)
			})
	}
	if err != nil {
		return model.RawPage{}, err
	}

	return decodePage(path, body)
}

func decodePage(path string, body []byte) (model.RawPage, error) {
	var page model.RawPage
	if err := json.Unmarshal(body, &page); err != nil {
		return model.RawPage{}, &MalformedResponseError{Path: path, Reason: "body is not a JSON page", Err: err}
	}
	if page.Data == nil {
		return model.RawPage{}, &MalformedResponseError{Path: path, Reason: "missing data array"}
	}
	return page, nil
}
