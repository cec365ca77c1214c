// Command fzsearch queries a document file from the command line and
// administers running search services.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/cmd/fzsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
