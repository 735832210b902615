package main

import (
	"os"

	"github.com/lugondev/anchorlite/cmd/anchorlite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
