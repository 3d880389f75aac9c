package main

import (
	"os"

	"pulseboard/cmd/pulseboard/commands"
)

// main is the entry point for the pulseboard CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
