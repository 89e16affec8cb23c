package main

import (
	"bytes"
	"strings"
	"testing"

	"ai-sqlnotebook-be/pkg/segment"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaySplitsReadsAndReportsDiscard(t *testing.T) {
	color.NoColor = true
	g := segment.MustGrammar(segment.DefaultTypes...)

	capture := g.Frame(segment.TypeText, "Result: here is data") +
		g.Frame(segment.TypeSQL, "SELECT * FROM t") +
		"=====TABLE=====unterminated"

	for _, size := range []int{1, 3, 7, 64, 4096} {
		var out bytes.Buffer
		stats, err := replay(strings.NewReader(capture), g, size, &out)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.SQL, "chunk size %d", size)
		assert.Equal(t, 1, stats.Chunks, "chunk size %d", size)
		assert.Equal(t, len("=====TABLE=====unterminated"), stats.Discarded)
		assert.Contains(t, out.String(), "[SQL]")
		assert.Contains(t, out.String(), "SELECT * FROM t")
		assert.Contains(t, out.String(), "[TEXT]")
	}
}

func TestReplayRejectsBadChunkSize(t *testing.T) {
	_, err := replay(strings.NewReader(""), segment.MustGrammar(segment.DefaultTypes...), 0, &bytes.Buffer{})
	assert.Error(t, err)
}
