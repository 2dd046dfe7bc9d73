package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marketfeed/tvstream"
	"github.com/marketfeed/tvstream/internal/config"
)

const version = "v0.1.0"

var stderrWriter io.Writer = os.Stderr

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if env := os.Getenv("TVSTREAM_ENV_FILE"); env != "" {
		if err := godotenv.Load(env); err != nil {
			logger.Warn().Err(err).Str("file", env).Msg("failed to load env file")
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			logger.Warn().Err(err).Msg("failed to load .env")
		}
	}

	rootCmd := &cobra.Command{
		Use:     "tvstream",
		Short:   "Demonstration CLI for the tvstream market-data client",
		Version: version,
		Long: `tvstream is a thin demonstration wrapper around the tvstream client library.

It is not part of the library's public API: it exists only to exercise
StreamCandles, FetchHistoricalCandles and StreamQuotes
from the command line, the way cryptorun exercises its provider clients.`,
	}

	var optionsFile string
	var presetsFile string
	var quiet bool
	rootCmd.PersistentFlags().StringVar(&optionsFile, "options", "", "path to a YAML options file (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&presetsFile, "presets", "", "path to a YAML subscription-presets file")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output")

	loadOptions := func() (config.Options, error) {
		if optionsFile == "" {
			return config.Validate(config.Default())
		}
		return config.Load(optionsFile)
	}

	streamCmd := &cobra.Command{
		Use:   "stream <symbol> <interval>",
		Short: "Stream live candles for a symbol",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			c, err := tvstream.NewClient(opts, prometheus.NewRegistry(), logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			stream, err := c.StreamCandles(ctx, args[0], args[1], 0)
			if err != nil {
				return err
			}
			defer stream.Close()

			for candle := range stream.Candles() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\n",
					candle.Timestamp, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
			}
			if err := stream.Err(); err != nil {
				return err
			}
			return nil
		},
	}

	backfillCmd := &cobra.Command{
		Use:   "backfill <symbol> <interval> <count>",
		Short: "Fetch a fixed-size window of historical candles",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[2], err)
			}

			opts, err := loadOptions()
			if err != nil {
				return err
			}
			c, err := tvstream.NewClient(opts, prometheus.NewRegistry(), logger)
			if err != nil {
				return err
			}

			isTTY := term.IsTerminal(int(os.Stdout.Fd()))
			bar := newProgressBar(fmt.Sprintf("backfill %s", args[0]), count, quiet || !isTTY)

			candles, err := c.FetchHistoricalCandles(cmd.Context(), args[0], args[1], count)
			if err != nil {
				bar.fail(err.Error())
				return err
			}
			bar.update(len(candles))
			bar.finish()

			for _, candle := range candles {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\n",
					candle.Timestamp, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
			}
			return nil
		},
	}

	quotesCmd := &cobra.Command{
		Use:   "quotes <symbol>",
		Short: "Stream live quote snapshots for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			c, err := tvstream.NewClient(opts, prometheus.NewRegistry(), logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			stream, err := c.StreamQuotes(ctx, args[0])
			if err != nil {
				return err
			}
			defer stream.Close()

			for q := range stream.Quotes() {
				price := "n/a"
				if q.CurrentPrice != nil {
					price = strconv.FormatFloat(*q.CurrentPrice, 'f', -1, 64)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", q.Symbol, price)
			}
			if err := stream.Err(); err != nil {
				return err
			}
			return nil
		},
	}

	presetCmd := &cobra.Command{
		Use:   "preset <name>",
		Short: "Start a backfill using a named entry from the presets file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if presetsFile == "" {
				return fmt.Errorf("tvstream preset requires --presets <file>")
			}
			presets, err := config.LoadPresets(presetsFile)
			if err != nil {
				return err
			}
			p, ok := config.Find(presets, args[0])
			if !ok {
				return fmt.Errorf("no preset named %q in %s", args[0], presetsFile)
			}

			opts, err := loadOptions()
			if err != nil {
				return err
			}
			c, err := tvstream.NewClient(opts, prometheus.NewRegistry(), logger)
			if err != nil {
				return err
			}

			candles, err := c.FetchHistoricalCandles(cmd.Context(), p.Symbol, p.Interval, p.BarCount)
			if err != nil {
				return err
			}
			for _, candle := range candles {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\n",
					candle.Timestamp, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
			}
			return nil
		},
	}

	rootCmd.AddCommand(streamCmd, backfillCmd, quotesCmd, presetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
