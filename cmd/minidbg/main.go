package main

import (
	"os"

	"github.com/chinggg/minidbg/cmd/minidbg/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
