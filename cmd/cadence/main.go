// Command cadence runs timed step sequences.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/cadence/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
