// Copyright 2026 The Pagevault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/pagevault-foundation/pagevault/cmd/pagevault/cli"
)

func storeCommand() *cli.Command {
	var (
		flags       vaultFlags
		refName     string
		compression string
		outputJSON  bool
	)

	return &cli.Command{
		Name:    "store",
		Summary: "Store a file or stdin as a chunk tree",
		Usage:   "pagevault store [file] [flags]",
		Description: `Split content into chunks and store it.

Reads from the named file, or from stdin if no file is given (or file
is "-"). The root ref is printed to stdout on success. Content already
present in the store is deduplicated chunk by chunk.`,
		Examples: []cli.Example{
			{
				Description: "Store a file",
				Command:     "pagevault store backup.tar",
			},
			{
				Description: "Store from stdin under a named ref",
				Command:     "pg_dump mydb | pagevault store --ref db/latest",
			},
			{
				Description: "Store without compression",
				Command:     "pagevault store video.mp4 --compression none",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("store", pflag.ContinueOnError)
			flags.addFlags(flagSet)
			flagSet.StringVar(&refName, "ref", "", "set a named ref to the stored root")
			flagSet.StringVar(&compression, "compression", "", "compression algorithm: none, lz4, zstd, auto (default: from config)")
			flagSet.BoolVar(&outputJSON, "json", false, "output the store result as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			v, err := flags.openVault(compression)
			if err != nil {
				return err
			}

			var content io.Reader = os.Stdin
			if len(args) > 0 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				content = file
			}

			result, err := v.store.StoreStream(content)
			if err != nil {
				return err
			}

			if refName != "" {
				if err := v.refs.Set(refName, result, nil, time.Now().UTC()); err != nil {
					return err
				}
			}

			if outputJSON {
				return writeJSON(map[string]any{
					"ref":          result.Ref,
					"size":         result.Size,
					"chunks":       result.ChunkCount,
					"indexes":      result.IndexCount,
					"stored_bytes": result.StoredBytes,
					"dedup_hits":   result.DedupHits,
				})
			}

			// Detail goes to stderr so stdout stays just the ref
			// (for composability with pipelines).
			fmt.Fprintf(os.Stderr, "%s (%d chunks, %s stored, %d deduplicated)\n",
				formatSize(result.Size), result.ChunkCount,
				formatSize(result.StoredBytes), result.DedupHits)
			fmt.Println(result.Ref)
			return nil
		},
	}
}
