// Command orderbookctl drives the order book through a test-grammar fixture
// file (spec §6) and reports whether the final state matched the expected
// result line. It is the in-process, non-network replacement for the
// teacher's TCP client/server pair — a network protocol is an explicit
// spec non-goal.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"matchbook/internal/book"
	"matchbook/internal/replay"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "orderbookctl",
		Short: "Replay and inspect matchbook order book fixtures",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newReplayCommand())
	return root
}

func newReplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture>",
		Short: "Run a grammar fixture file against a fresh order book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0])
		},
	}
}

func runReplay(path string) error {
	runID := uuid.New().String()
	logger := log.With().Str("runId", runID).Str("fixture", path).Logger()

	file, err := os.Open(path)
	if err != nil {
		logger.Error().Err(err).Msg("unable to open fixture")
		return err
	}
	defer file.Close()

	script, err := replay.Parse(file)
	if err != nil {
		logger.Error().Err(err).Msg("unable to parse fixture")
		return err
	}
	logger.Info().Int("instructions", len(script.Instructions)).Msg("fixture parsed")

	ob := book.New()
	defer ob.Close()

	trades, matched := replay.Run(ob, script)

	totalTrades := 0
	for _, batch := range trades {
		totalTrades += len(batch)
		for _, t := range batch {
			logger.Debug().Stringer("trade", t).Msg("trade executed")
		}
	}

	infos := ob.GetOrderInfos()
	logger.Info().
		Int("resting", ob.Size()).
		Int("bidLevels", len(infos.Bids)).
		Int("askLevels", len(infos.Asks)).
		Int("trades", totalTrades).
		Bool("matchedExpectation", matched).
		Msg("replay complete")

	fmt.Printf(
		"resting=%d bidLevels=%d askLevels=%d trades=%d matched=%v\n",
		ob.Size(), len(infos.Bids), len(infos.Asks), totalTrades, matched,
	)

	if !matched {
		return fmt.Errorf(
			"final state mismatch: got (total=%d, bids=%d, asks=%d), want (total=%d, bids=%d, asks=%d)",
			ob.Size(), len(infos.Bids), len(infos.Asks),
			script.Expect.Total, script.Expect.BidLevels, script.Expect.AskLevels,
		)
	}
	return nil
}
