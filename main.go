package main

import (
	"log"

	"github.com/zvonler/wallspider/cli"
)

func main() {
	wallspiderCmd := cli.NewCommand()
	if err := wallspiderCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
