package main

import (
	"os"

	"github.com/GabrielNunesIT/s3-ingestor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
