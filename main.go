package main

import (
	"os"

	"github.com/spigell/chat-applier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
