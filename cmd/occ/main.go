// Command occ is the CLI for the segmented entity store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/occ/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
