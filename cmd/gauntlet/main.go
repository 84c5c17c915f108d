package main

import (
	"fmt"
	"os"

	"github.com/teranos/gauntlet/cmd/gauntlet/commands"
	"github.com/teranos/gauntlet/logger"
)

func main() {
	defer logger.Cleanup()
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.Describe(err))
		os.Exit(1)
	}
}
