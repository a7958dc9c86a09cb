package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/providers"
	"github.com/scoboslor/player2/utils"
)

var (
	lookupDuration int
	lookupAlbum    string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <artist> <title>",
	Short: "look lyrics up through the configured providers",
	Long:  `lookup asks the configured providers for the lyrics of one track and prints the timed lines.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		track := &models.Track{
			Artist:     args[0],
			Title:      args[1],
			Album:      lookupAlbum,
			DurationMs: lookupDuration * 1000,
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if config.FetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.FetchTimeout)
			defer cancel()
		}

		start := time.Now()
		lrc, err := newChain(config).Lookup(ctx, track)
		if errors.Is(err, providers.ErrNoLyrics) {
			return fmt.Errorf("no lyrics found for %s", utils.FormatTrack(track))
		}
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n\n", utils.FormatTrack(track), time.Since(start).Round(time.Millisecond))
		printDocument(out, utils.ParseLrc(lrc))
		return nil
	},
}

func init() {
	lookupCmd.Flags().IntVarP(&lookupDuration, "duration", "d", 0, "track duration in seconds")
	lookupCmd.Flags().StringVar(&lookupAlbum, "album", "", "album name")
}
