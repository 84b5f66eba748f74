// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pagevault-foundation/pagevault/cmd/pagevault/cli"
	"github.com/pagevault-foundation/pagevault/lib/object"
)

func statCommand() *cli.Command {
	var (
		flags      vaultFlags
		outputJSON bool
	)

	return &cli.Command{
		Name:    "stat",
		Summary: "Show size and piece counts for a stored tree",
		Usage:   "pagevault stat <ref> [flags]",
		Description: `Summarize a stored tree: logical size, chunk and index counts, and
the on-disk footprint of its pieces.

Exits 1 without an error message when the ref does not exist, so the
command doubles as an existence check in scripts.`,
		Examples: []cli.Example{
			{
				Description: "Inspect a named ref",
				Command:     "pagevault stat backups/daily",
			},
			{
				Description: "Check existence in a script",
				Command:     "pagevault stat pv-a3f9b2c1e7d4 --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stat", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output the summary as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("ref argument required\n\nUsage: pagevault stat <ref> [flags]")
			}

			v, err := flags.openVault("")
			if err != nil {
				return err
			}

			root, err := v.resolveTarget(args[0])
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "not found: %s\n", args[0])
				return &cli.ExitError{Code: 1}
			}
			if err != nil {
				return err
			}

			stat, err := v.store.Stat(context.Background(), root)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(map[string]any{
					"ref":          stat.Ref,
					"hash":         object.FormatHash(stat.Root.Digest.Hash),
					"kind":         stat.Root.Kind().String(),
					"size":         stat.Size,
					"chunks":       stat.ChunkCount,
					"indexes":      stat.IndexCount,
					"stored_bytes": stat.StoredBytes,
				})
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "Ref:\t%s\n", stat.Ref)
			fmt.Fprintf(writer, "Hash:\t%s\n", object.FormatHash(stat.Root.Digest.Hash))
			fmt.Fprintf(writer, "Kind:\t%s\n", stat.Root.Kind())
			fmt.Fprintf(writer, "Size:\t%s (%d bytes)\n", formatSize(int64(stat.Size)), stat.Size)
			fmt.Fprintf(writer, "Chunks:\t%d\n", stat.ChunkCount)
			fmt.Fprintf(writer, "Indexes:\t%d\n", stat.IndexCount)
			fmt.Fprintf(writer, "On disk:\t%s\n", formatSize(stat.StoredBytes))
			writer.Flush()
			return nil
		},
	}
}
