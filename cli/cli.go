package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zvonler/wallspider/cli/crawl"
	"github.com/zvonler/wallspider/cli/open"
	"github.com/zvonler/wallspider/cli/serve"
	"github.com/zvonler/wallspider/cli/wordcloud"
)

var (
	configPath string
	apiToken   string
	baseURL    string
	verbose    bool
)

func NewCommand() *cobra.Command {
	wallspiderCli := &cobra.Command{
		Use:     "wallspider",
		Short:   "Wallspider CLI",
		Long:    "Crawls the children of Graph API pages, posts and comments",
		Example: fmt.Sprintf("  %s <command> [flags...]", os.Args[0]),
	}

	flags := wallspiderCli.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ./wallspider.yaml or $XDG_CONFIG_HOME/wallspider/wallspider.yaml)")
	flags.StringVar(&apiToken, "api-token", "", "Graph API access token")
	flags.StringVar(&baseURL, "base-url", "", "Graph API base URL")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log requests and pages to stderr")

	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("api_token", flags.Lookup("api-token"))
	viper.BindPFlag("base_url", flags.Lookup("base-url"))
	viper.BindPFlag("verbose", flags.Lookup("verbose"))

	wallspiderCli.AddCommand(crawl.NewCommand())
	wallspiderCli.AddCommand(open.NewCommand())
	wallspiderCli.AddCommand(serve.NewCommand())
	wallspiderCli.AddCommand(wordcloud.NewCommand())

	return wallspiderCli
}
