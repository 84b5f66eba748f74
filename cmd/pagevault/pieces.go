// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pagevault-foundation/pagevault/cmd/pagevault/cli"
	"github.com/pagevault-foundation/pagevault/lib/object"
)

func piecesCommand() *cli.Command {
	var (
		flags      vaultFlags
		outputJSON bool
	)

	return &cli.Command{
		Name:    "pieces",
		Summary: "List every piece of a stored tree",
		Usage:   "pagevault pieces <ref> [flags]",
		Description: `Walk a stored tree and list its pieces, parents before children.

Each line shows the piece's short ref, its kind (value or index), and
its on-disk size. Pieces shared within the tree are listed once.`,
		Examples: []cli.Example{
			{
				Description: "List pieces of a named ref",
				Command:     "pagevault pieces backups/daily",
			},
			{
				Description: "Machine-readable listing",
				Command:     "pagevault pieces pv-a3f9b2c1e7d4 --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("pieces", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output the listing as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("ref argument required\n\nUsage: pagevault pieces <ref> [flags]")
			}

			v, err := flags.openVault("")
			if err != nil {
				return err
			}
			root, err := v.resolveTarget(args[0])
			if err != nil {
				return err
			}

			pieces, err := v.store.ListPieces(context.Background(), root)
			if err != nil {
				return err
			}

			if outputJSON {
				type pieceJSON struct {
					Ref      string `json:"ref"`
					Hash     string `json:"hash"`
					Kind     string `json:"kind"`
					FileSize int64  `json:"file_size"`
				}
				listing := make([]pieceJSON, 0, len(pieces))
				for _, piece := range pieces {
					listing = append(listing, pieceJSON{
						Ref:      object.FormatRef(piece.ID),
						Hash:     object.FormatHash(piece.ID.Digest.Hash),
						Kind:     piece.ID.Kind().String(),
						FileSize: piece.FileSize,
					})
				}
				return writeJSON(listing)
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "REF\tKIND\tON DISK\n")
			for _, piece := range pieces {
				fmt.Fprintf(writer, "%s\t%s\t%s\n",
					object.FormatRef(piece.ID),
					piece.ID.Kind(),
					formatSize(piece.FileSize),
				)
			}
			writer.Flush()
			return nil
		},
	}
}
