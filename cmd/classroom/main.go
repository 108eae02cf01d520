package main

import (
	"os"

	"github.com/stemsi/classroom-client/cmd/classroom/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
