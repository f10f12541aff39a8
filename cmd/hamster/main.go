// Command hamster drives the keyboard core from a terminal: it validates
// keyboard documents, deploys schemas and types through the engine.
package main

import (
	"os"

	"hamster/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
