package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "replay_stream",
	Short: "Capture and replay streamed query responses through the segment decoder",
	Long: `replay_stream feeds a captured query backend response through the same
reassembler the server uses, split into reads of a chosen size, and prints every
segment it extracts. Use it to reproduce decoding issues with markers split
across reads.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
