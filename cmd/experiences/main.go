package main

import (
	"os"

	"github.com/solatis/experiences/cmd/experiences/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
