package open

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/zvonler/wallspider/configuration"
)

var printOnly bool

func NewCommand() *cobra.Command {
	openCommand := &cobra.Command{
		Use:   "open <node_id>",
		Short: "Opens a node in a browser",
		Args:  cobra.ExactArgs(1),
		Example: "  # Opens a post on the web\n" +
			"  " + os.Args[0] + " open 123_456",
		Run: runOpenCommand,
	}
	openCommand.Flags().BoolVar(&printOnly, "print", false, "Print the URL instead of opening it")
	return openCommand
}

func runOpenCommand(cmd *cobra.Command, args []string) {
	cfg, err := configuration.Current()
	if err != nil {
		log.Fatal(err)
	}

	url, err := cfg.NodeURL(args[0])
	if err != nil {
		log.Fatal(err)
	}

	if printOnly {
		fmt.Println(url)
		return
	}
	if err := browser.OpenURL(url); err != nil {
		log.Fatal(err)
	}
}
