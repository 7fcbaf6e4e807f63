package main

import (
	"os"

	"github.com/AlexZinkM/xdaghub/cmd/xdaghub/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
