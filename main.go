package main

import (
	"os"

	"github.com/karimfahmy/clipvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
