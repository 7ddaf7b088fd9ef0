package main

import (
	"os"

	"github.com/goldsam/jest-localstack/cmd"
)

func main() {
	// We delegate all logic to the cmd package.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
