package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/utils"
)

var parseAt int

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "print the timed lines of an LRC file",
	Long: `parse reads LRC text from a file (or stdin when no file or "-" is given) and
prints the normalized lines with their intervals. with --at, only the line
active at that position is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		buf, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read lyrics: %w", err)
		}
		doc := utils.ParseLrc(string(buf))
		if cmd.Flags().Changed("at") {
			return printActive(cmd.OutOrStdout(), doc, parseAt)
		}
		printDocument(cmd.OutOrStdout(), doc)
		return nil
	},
}

func init() {
	parseCmd.Flags().IntVar(&parseAt, "at", 0, "print the line active at this position (ms)")
}

func printDocument(w io.Writer, doc *models.Document) {
	if doc.Len() == 0 {
		fmt.Fprintln(w, "no timed lines")
		return
	}
	for i, line := range doc.Lines {
		fmt.Fprintf(w, "%3d  %s -> %s  %s\n", i, utils.FormatPosition(line.StartMs), utils.FormatPosition(line.EndMs), line.Words)
	}
}

func printActive(w io.Writer, doc *models.Document, position int) error {
	idx := doc.IndexOf(position, 0)
	if idx == -1 {
		return fmt.Errorf("no line active at %s", utils.FormatPosition(position))
	}
	fmt.Fprintf(w, "%d  %s\n", idx, doc.Get(idx))
	return nil
}
