// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/pagevault-foundation/pagevault/cmd/pagevault/cli"
	"github.com/pagevault-foundation/pagevault/lib/object"
	"github.com/pagevault-foundation/pagevault/lib/pagestore"
)

func refsCommand() *cli.Command {
	return &cli.Command{
		Name:    "refs",
		Summary: "Manage named refs (name to root pointers)",
		Description: `Manage named refs.

Refs are mutable name-to-root pointers that give stored trees stable
names. The pieces a ref points at are untouched by ref operations.`,
		Subcommands: []*cli.Command{
			refsListCommand(),
			refsSetCommand(),
			refsDeleteCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "List all refs",
				Command:     "pagevault refs list",
			},
			{
				Description: "Point a name at a stored tree",
				Command:     "pagevault refs set backups/daily pv-a3f9b2c1e7d4",
			},
			{
				Description: "Update only if the ref still points where expected",
				Command:     "pagevault refs set db/latest pv-b5e8d3f1a2c0 --expected pv-a3f9b2c1e7d4",
			},
		},
	}
}

func refsListCommand() *cli.Command {
	var (
		flags      vaultFlags
		prefix     string
		outputJSON bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List refs, optionally filtered by name prefix",
		Usage:   "pagevault refs list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			flagSet.StringVar(&prefix, "prefix", "", "filter refs by name prefix")
			flagSet.BoolVar(&outputJSON, "json", false, "output the listing as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			v, err := flags.openVault("")
			if err != nil {
				return err
			}

			records := v.refs.List(prefix)

			if outputJSON {
				type refJSON struct {
					Name      string    `json:"name"`
					Root      string    `json:"root"`
					Size      int64     `json:"size"`
					UpdatedAt time.Time `json:"updated_at"`
				}
				listing := make([]refJSON, 0, len(records))
				for _, record := range records {
					listing = append(listing, refJSON{
						Name:      record.Name,
						Root:      object.FormatRef(record.Identifier()),
						Size:      record.Size,
						UpdatedAt: record.UpdatedAt,
					})
				}
				return writeJSON(listing)
			}

			if len(records) == 0 {
				fmt.Println("No refs found.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "NAME\tROOT\tSIZE\tUPDATED\n")
			for _, record := range records {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					record.Name,
					object.FormatRef(record.Identifier()),
					formatSize(record.Size),
					record.UpdatedAt.Format("2006-01-02 15:04:05 UTC"),
				)
			}
			writer.Flush()
			return nil
		},
	}
}

func refsSetCommand() *cli.Command {
	var (
		flags    vaultFlags
		expected string
	)

	return &cli.Command{
		Name:    "set",
		Summary: "Create or update a ref",
		Usage:   "pagevault refs set <name> <ref> [flags]",
		Description: `Point a name at a stored tree.

The target can be a short ref, a full hex hash, or another named ref.
With --expected, the update only succeeds if the ref currently points
at the given target (compare-and-swap).`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			flagSet.StringVar(&expected, "expected", "", "expected current target (for compare-and-swap updates)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("name and ref arguments required\n\nUsage: pagevault refs set <name> <ref> [flags]")
			}

			v, err := flags.openVault("")
			if err != nil {
				return err
			}
			root, err := v.resolveTarget(args[1])
			if err != nil {
				return err
			}

			// The ref records the tree's size and chunk count, so a
			// manual set walks the tree the same way StoreStream does.
			stat, err := v.store.Stat(context.Background(), root)
			if err != nil {
				return err
			}
			result := &pagestore.StoreResult{
				Root:       stat.Root,
				Ref:        stat.Ref,
				Size:       int64(stat.Size),
				ChunkCount: stat.ChunkCount,
				IndexCount: stat.IndexCount,
			}

			var expectedPrevious *object.Digest
			if expected != "" {
				id, err := v.resolveTarget(expected)
				if err != nil {
					return err
				}
				expectedPrevious = &id.Digest
			}

			if err := v.refs.Set(args[0], result, expectedPrevious, time.Now().UTC()); err != nil {
				return err
			}

			fmt.Printf("%s -> %s\n", args[0], stat.Ref)
			return nil
		},
	}
}

func refsDeleteCommand() *cli.Command {
	var flags vaultFlags

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a ref",
		Usage:   "pagevault refs delete <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("ref name required\n\nUsage: pagevault refs delete <name> [flags]")
			}

			v, err := flags.openVault("")
			if err != nil {
				return err
			}
			if err := v.refs.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted: %s\n", args[0])
			return nil
		},
	}
}
