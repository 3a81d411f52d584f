package main

import (
	"fmt"
	"os"

	"github.com/roach88/citerate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own structured output; this catches what
		// they could not (usage errors, silent failures).
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
