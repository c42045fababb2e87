// Command ruleforge builds and maintains the helper archive of a rule
// library directory.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ruleforge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
