package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zvonler/wallspider/logging"
	"github.com/zvonler/wallspider/model"
)

type loggerKey struct{}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// Crawler is the entry point for crawling one node's children. It holds no
// per-crawl state, so one Crawler may serve concurrent Crawl calls.
type Crawler struct {
	token      string
	paginator  *Paginator
	normalizer Normalizer
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type CrawlerOption func(*Crawler)

// WithCrawlTimeout bounds the wall-clock time of a single crawl.
func WithCrawlTimeout(d time.Duration) CrawlerOption {
	return func(c *Crawler) {
		c.timeout = d
	}
}

func WithLocation(loc *time.Location) CrawlerOption {
	return func(c *Crawler) {
		c.normalizer.Location = loc
	}
}

func WithClock(now func() time.Time) CrawlerOption {
	return func(c *Crawler) {
		c.now = now
	}
}

func WithLogger(logger *slog.Logger) CrawlerOption {
	return func(c *Crawler) {
		c.logger = logger
	}
}

func NewCrawler(paginator *Paginator, token string, opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		token:     token,
		paginator: paginator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c
}

// Crawl validates the request, resolves its time window, then pages through
// the node's children and returns them as records. It returns either every
// record or an error, never a truncated list.
func (c *Crawler) Crawl(ctx context.Context, nodeID, nodeType string, opts model.CrawlOptions) ([]model.Record, error) {
	nt, err := model.ParseNodeType(nodeType)
	if err != nil {
		return nil, &ValidationError{Field: "node type", Value: nodeType, Err: err}
	}
	if nodeID == "" {
		return nil, &ValidationError{Field: "node id", Value: nodeID, Err: ErrInvalidOption}
	}
	if err := opts.Validate(); err != nil {
		return nil, &ValidationError{Field: "options", Value: fmt.Sprintf("%+v", opts), Err: err}
	}

	window := opts.Resolve(nt, c.now())
	path := BuildPath(nodeID, nt, window, c.token)

	logger := c.logger.With("crawl_id", uuid.NewString(), "node", nodeID, "type", nt.String())
	ctx = context.WithValue(ctx, loggerKey{}, logger)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Info("crawl started", "since", strconv.FormatInt(window.Since, 10), "until", strconv.FormatInt(window.Until, 10))
	started := time.Now()

	pages, err := c.paginator.Paginate(ctx, path)
	if err != nil {
		logger.Error("crawl failed", "error", err)
		return nil, fmt.Errorf("crawl %s %s: %w", nt, nodeID, err)
	}

	records, err := c.normalizer.Normalize(pages)
	if err != nil {
		logger.Error("crawl failed", "error", err)
		return nil, fmt.Errorf("crawl %s %s: %w", nt, nodeID, err)
	}

	logger.Info("crawl finished", "pages", len(pages), "records", len(records), "elapsed", time.Since(started))
	return records, nil
}
