package main

import (
	"os"

	"github.com/mmynk/receiptsplit/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
