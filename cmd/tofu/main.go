package main

import (
	"log"
	"os"

	"github.com/tofu-suite/tofu/cmd/tofu/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
