// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/pagevault-foundation/pagevault/cmd/pagevault/cli"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an exit error
		// with the desired code. Don't print a redundant "error:"
		// line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "pagevault",
		Description: `Pagevault: content-defined chunking store.

Streams are split into content-defined chunks, deduplicated, and stored
as compressed content-addressed pieces under an index tree. Stored
trees are addressed by short refs (pv-<hex>) or by named refs.`,
		Subcommands: []*cli.Command{
			storeCommand(),
			catCommand(),
			piecesCommand(),
			refsCommand(),
			statCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("pagevault %s\n", version)
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Store a file under a named ref",
				Command:     "pagevault store backup.tar --ref backups/daily",
			},
			{
				Description: "Restore it to a file",
				Command:     "pagevault cat backups/daily -o restored.tar",
			},
			{
				Description: "Read 1 MiB starting at offset 4096",
				Command:     "pagevault cat backups/daily --offset 4096 --length 1048576",
			},
			{
				Description: "Inspect a stored tree",
				Command:     "pagevault stat pv-a3f9b2c1e7d4",
			},
			{
				Description: "List every piece of a tree",
				Command:     "pagevault pieces backups/daily",
			},
		},
	}
}
