package main

import (
	"os"

	"synctrust/cmd/synctrust/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
