// Command ocpanel loads a firms × years over-confidence panel and either
// answers one query from the command line or serves the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
		os.Exit(1)
	}
}
