package crawl

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/zvonler/wallspider/configuration"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/model"
	"golang.org/x/term"
)

var (
	nodeType     string
	since        int64
	until        int64
	sinceDaysAgo int
	format       string
)

func NewCommand() *cobra.Command {
	crawlCommand := &cobra.Command{
		Use:   "crawl [--type page|post|comment] <node_id>...",
		Short: "Crawls the children of one or more nodes and prints them",
		Args:  cobra.MinimumNArgs(1),
		Example: "  # Posts on a page's feed from the last three days\n" +
			"  " + os.Args[0] + " crawl --type page --since-days-ago 3 cocacola\n" +
			"  # Replies to a comment, as JSON\n" +
			"  " + os.Args[0] + " crawl --type comment --format json 123_456",
		Run: runCrawlCommand,
	}

	crawlCommand.Flags().StringVarP(&nodeType, "type", "t", string(model.NodeTypePage), "Node type: page, post or comment")
	crawlCommand.Flags().Int64Var(&since, "since", 0, "Only children created at or after this epoch second")
	crawlCommand.Flags().Int64Var(&until, "until", 0, "Only children created at or before this epoch second")
	crawlCommand.Flags().IntVar(&sinceDaysAgo, "since-days-ago", 0, "Only children from the last N days (overrides --since and --until)")
	crawlCommand.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, markdown or pager (default pager on a terminal, table otherwise)")

	return crawlCommand
}

// Targets pairs every node id with the same type and options.
func Targets(nodeIDs []string, nodeType string, opts model.CrawlOptions) []graph.Target {
	targets := make([]graph.Target, len(nodeIDs))
	for i, id := range nodeIDs {
		targets[i] = graph.Target{NodeID: id, NodeType: nodeType, Options: opts}
	}
	return targets
}

func runCrawlCommand(cmd *cobra.Command, args []string) {
	if format == "" {
		format = FormatTable
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = FormatPager
		}
	}
	if !ValidFormat(format) {
		log.Fatalf("Unknown format %q", format)
	}

	cfg, err := configuration.Current()
	if err != nil {
		log.Fatal(err)
	}

	crawler, err := cfg.NewCrawler(cfg.NewLogger(os.Stderr))
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := model.CrawlOptions{Since: since, Until: until, SinceDaysAgo: sinceDaysAgo}
	results, err := graph.CrawlMany(ctx, crawler, Targets(args, nodeType, opts), cfg.Concurrency)
	if err != nil {
		log.Fatal(err)
	}

	if format == FormatPager {
		err = Page(results, time.Now())
	} else {
		err = Render(os.Stdout, format, results, time.Now())
	}
	if err != nil {
		log.Fatal(err)
	}
}
