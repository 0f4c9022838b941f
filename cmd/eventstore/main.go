// Command eventstore drives the event store's storage engine from the
// command line: append payloads, read streams back, manage multiple
// stores, and export/inspect backup archives.
package main

import (
	"fmt"
	"os"

	"eventstore/cmd/eventstore/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
