package main

import (
	"os"

	"trending-coordinator/cmd/trendwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
