package graph

import (
	"context"

	"github.com/zvonler/wallspider/model"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Target names one node to crawl.
type Target struct {
	NodeID   string
	NodeType string
	Options  model.CrawlOptions
}

type Result struct {
	Target  Target
	Records []model.Record
}

// NodeCrawler is the part of Crawler that batch callers depend on.
type NodeCrawler interface {
	Crawl(ctx context.Context, nodeID, nodeType string, opts model.CrawlOptions) ([]model.Record, error)
}

// CrawlMany crawls targets with at most concurrency crawls in flight.
// Results keep the order of targets. The first failure cancels the remaining
// crawls and is returned alone.
func CrawlMany(ctx context.Context, crawler NodeCrawler, targets []Target, concurrency int) ([]Result, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range targets {
		i := i
		g.Go(func() error {
			target := targets[i]
			records, err := crawler.Crawl(ctx, target.NodeID, target.NodeType, target.Options)
			if err != nil {
				return err
			}
			results[i] = Result{Target: target, Records: records}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
