package main

import (
	"os"

	"github.com/keeltrust/keel/cmd/keel/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
