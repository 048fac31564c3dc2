package main

import (
	"os"
)

func main() {
	// Initialize styled help after all commands are registered
	initHelp(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		// Keys are scrubbed from anything printed here
		outputError(os.Stderr, err)
		os.Exit(1)
	}
}
