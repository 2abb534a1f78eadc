// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ava-labs/worldstate/config"
	"github.com/ava-labs/worldstate/trace"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/worldstate"
)

// blockEntry is a block along with the L1 to L2 messages it consumed.
type blockEntry struct {
	Block          worldstate.Block `json:"block"`
	L1ToL2Messages []fr.Element     `json:"l1ToL2Messages"`
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "worldstate",
		Short:        "Inspects and maintains a rollup world state",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().AddFlagSet(config.BuildFlagSet())

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Prints the chain markers and the state of every tree",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return withStore(c, func(ctx context.Context, s *worldstate.Store) (any, error) {
					return struct {
						Status worldstate.Status        `json:"status"`
						DB     []worldstate.TreeDBStats `json:"db"`
					}{
						Status: s.Status(),
						DB:     s.DBStats(),
					}, nil
				})
			},
		},
		heightCommand("finalise", "Marks every block up to the height as finalised", func(ctx context.Context, s *worldstate.Store, height uint64) (any, error) {
			return s.SetFinalised(ctx, height)
		}),
		heightCommand("unwind", "Removes every block above the height", func(ctx context.Context, s *worldstate.Store, height uint64) (any, error) {
			return s.UnwindTo(ctx, height)
		}),
		heightCommand("prune", "Removes the historical state of every block below the height", func(ctx context.Context, s *worldstate.Store, height uint64) (any, error) {
			return s.RemoveHistoricalBlocksUpTo(ctx, height)
		}),
		&cobra.Command{
			Use:   "sync <blocks.json>",
			Short: "Applies a JSON list of blocks to the world state",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				entries, err := readBlocks(args[0])
				if err != nil {
					return err
				}
				return withStore(c, func(ctx context.Context, s *worldstate.Store) (any, error) {
					status := s.Status()
					for _, entry := range entries {
						status, err = s.HandleBlock(ctx, &entry.Block, entry.L1ToL2Messages)
						if err != nil {
							return nil, fmt.Errorf("failed to handle block %d: %w", entry.Block.Number(), err)
						}
					}
					return status, nil
				})
			},
		},
	)
	return cmd
}

func heightCommand(
	use string,
	short string,
	run func(context.Context, *worldstate.Store, uint64) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <height>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid height %q: %w", args[0], err)
			}
			return withStore(c, func(ctx context.Context, s *worldstate.Store) (any, error) {
				return run(ctx, s, height)
			})
		},
	}
}

func readBlocks(path string) ([]blockEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []blockEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}

// withStore opens the world state configured by the flags of [c], runs [f]
// against it and prints the result as JSON.
func withStore(c *cobra.Command, f func(context.Context, *worldstate.Store) (any, error)) error {
	v, err := config.BuildViper(c.Flags(), nil)
	if err != nil {
		return err
	}
	cfg, err := config.GetConfig(v)
	if err != nil {
		return err
	}

	logFactory := logging.NewFactory(cfg.Logging)
	defer logFactory.Close()
	log, err := logFactory.Make("worldstate")
	if err != nil {
		return err
	}

	tracer, err := trace.New(cfg.Trace)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Close(); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()
	cfg.WorldState.Tracer = tracer

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := worldstate.Open(ctx, cfg.WorldState, log, prometheus.NewRegistry())
	if err != nil {
		log.Error("failed to open world state", zap.Error(err))
		return err
	}

	result, err := f(ctx, s)
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return printJSON(c.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
