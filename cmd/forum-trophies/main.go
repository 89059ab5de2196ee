package main

import (
	"os"

	"github.com/aimd54/forum-trophies/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
