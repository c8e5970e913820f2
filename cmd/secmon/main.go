package main

import (
	"os"

	"github.com/sentinel-systems/secmon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
