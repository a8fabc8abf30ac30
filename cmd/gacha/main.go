package main

import (
	"os"

	"github.com/tokenized/gacha/cmd/gacha/cmd"
)

// Gacha CLI
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
