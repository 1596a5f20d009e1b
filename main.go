package main

import (
	"os"

	"github.com/conneroisu/ssrgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
