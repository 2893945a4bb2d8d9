// Package main is the entry point for the syncd status server.
package main

import (
	"fmt"
	"os"

	"github.com/aaronkwan/synced-object/cmd/syncd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
