// Package main is the biomatch command line: one-shot matching, the model
// registry and review queue schema migrations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
