package main

import (
	"os"

	_ "time/tzdata"

	"github.com/runnerr0/wereyouhere/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
