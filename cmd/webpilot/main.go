package main

import (
	"os"

	"github.com/fikri/webpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
