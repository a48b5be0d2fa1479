package main

import (
	"os"

	"github.com/shiva-rakshith/hcx-platform/cmd/hcx-node/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
