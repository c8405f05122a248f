// Command quadmatch loads quads into a store and evaluates CUE-defined
// pattern queries against it.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/quadmatch/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
