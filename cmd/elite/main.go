// Command elite submits tasks to the engine and inspects its tools, models
// and configuration.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
