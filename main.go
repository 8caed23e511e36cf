package main

import (
	"os"

	"github.com/web-padawan/demosnippet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
