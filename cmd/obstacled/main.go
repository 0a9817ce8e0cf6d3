package main

import (
	"os"

	"github.com/chazu/obstacled/cmd/obstacled/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
