package main

import (
	"fmt"
	"os"

	"github.com/andrei-cloud/go_cardsim/internal/commands/cli"
)

// main builds the command tree and executes it.
func main() {
	root, err := cli.NewRootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
