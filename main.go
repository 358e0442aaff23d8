package main

import (
	"os"

	"github.com/scadform/scadform/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
