// Command dashd hosts linked-view dashboards: it lists them, serves them over
// HTTP, replays event files into exported artifacts and browses them in the
// terminal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
