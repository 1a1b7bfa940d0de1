// Package main is the command-line interface to the ELSIE garbage-collected object store.
package main

import (
	"context"
	"os"

	"github.com/smoynes/talus/internal/cli"
	"github.com/smoynes/talus/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.GC(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
