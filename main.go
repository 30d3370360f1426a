// Package main is the qconverto command line.
package main

import (
	"os"

	"github.com/Qwejay/Qconverto/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
