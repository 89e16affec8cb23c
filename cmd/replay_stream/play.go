package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/pkg/segment"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	playChunkSize int
	playTypes     string
	playNoColor   bool
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVar(&playChunkSize, "chunk-size", 16, "bytes per simulated network read")
	playCmd.Flags().StringVar(&playTypes, "types", "sql,text,table,chart", "output types in scan priority order")
	playCmd.Flags().BoolVar(&playNoColor, "no-color", false, "disable colored output")
}

var playCmd = &cobra.Command{
	Use:   "play <file|->",
	Short: "Replay a captured response and print the extracted segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if playNoColor {
			color.NoColor = true
		}

		grammar, err := segment.NewGrammar(segment.ParseTypes(playTypes)...)
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open capture: %w", err)
			}
			defer f.Close()
			in = f
		}

		stats, err := replay(in, grammar, playChunkSize, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		color.New(color.FgHiBlack).Fprintf(cmd.OutOrStdout(),
			"\n%d reads, %d sql, %d chunks, %d bytes discarded at end\n",
			stats.Reads, stats.SQL, stats.Chunks, stats.Discarded)
		return nil
	},
}

type replayStats struct {
	Reads     int
	SQL       int
	Chunks    int
	Discarded int
}

// replay drives the reassembler exactly like the server's read loop does,
// except that reads are cut to chunkSize bytes.
func replay(r io.Reader, grammar *segment.Grammar, chunkSize int, w io.Writer) (replayStats, error) {
	if chunkSize <= 0 {
		return replayStats{}, fmt.Errorf("chunk-size must be positive")
	}

	var stats replayStats
	entry := &entity.NotebookEntry{}
	reassembler := segment.NewReassembler(grammar)
	router := segment.NewRouter(segment.EntrySinkFunc(func(e *entity.NotebookEntry) {
		stats.SQL = len(e.SqlQueries)
		stats.Chunks = e.SegmentCount() - stats.SQL
	}))

	emit := func(seg segment.Segment) {
		router.Route(entry, seg)
		label := segmentColor(seg.Type).Sprintf("[%s]", strings.ToUpper(seg.Type.String()))
		fmt.Fprintf(w, "%s read #%d\n%s\n", label, stats.Reads, seg.Content)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			stats.Reads++
			for _, seg := range reassembler.Consume(buf[:n]) {
				emit(seg)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read capture: %w", err)
		}
	}

	// Consume has already drained everything extractable, so whatever is
	// pending now is what Flush throws away.
	stats.Discarded = reassembler.Pending()
	if seg, ok := reassembler.Flush(); ok {
		emit(seg)
	}
	return stats, nil
}

func segmentColor(t segment.OutputType) *color.Color {
	switch t {
	case segment.TypeSQL:
		return color.New(color.FgYellow, color.Bold)
	case segment.TypeText:
		return color.New(color.FgGreen)
	case segment.TypeTable:
		return color.New(color.FgCyan)
	case segment.TypeChart:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgWhite)
	}
}
