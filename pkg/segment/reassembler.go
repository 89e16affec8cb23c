package segment

import (
	"strings"
)

// Segment is one typed, delimited unit of content extracted from the stream.
type Segment struct {
	Type    OutputType
	Content string
}

// Reassembler accumulates raw reads of a single response and extracts complete
// segments. It is not safe for concurrent use; one Reassembler serves one stream.
type Reassembler struct {
	grammar *Grammar
	pending []byte
}

func NewReassembler(grammar *Grammar) *Reassembler {
	return &Reassembler{grammar: grammar}
}

// Consume appends one network read to the pending buffer and returns every
// segment that became complete. A read may end anywhere, including inside a
// marker or inside a multi-byte rune; the remainder waits for the next call.
func (r *Reassembler) Consume(raw []byte) []Segment {
	r.pending = append(r.pending, raw...)

	var out []Segment
	for {
		seg, ok := r.extract()
		if !ok {
			return out
		}
		out = append(out, seg)
	}
}

// Flush runs a last extraction at stream end and then drops whatever is left.
// Unterminated segments and text outside any marker are discarded silently.
func (r *Reassembler) Flush() (Segment, bool) {
	seg, ok := r.extract()
	r.pending = r.pending[:0]
	return seg, ok
}

// Pending reports how many bytes are buffered and not yet part of a segment.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}

func (r *Reassembler) Reset() {
	r.pending = r.pending[:0]
}

// extract performs one pass of the fixed-priority scan. Types are tried in
// enumeration order, not in the order their markers appear in the buffer.
// A start marker without its end marker halts the pass.
func (r *Reassembler) extract() (Segment, bool) {
	for _, t := range r.grammar.types {
		m := r.grammar.markers[t]

		start := indexFold(r.pending, m.Start)
		if start < 0 {
			continue
		}

		contentStart := start + len(m.Start)
		rel := indexFold(r.pending[contentStart:], m.End)
		if rel < 0 {
			return Segment{}, false
		}
		contentEnd := contentStart + rel
		spanEnd := contentEnd + len(m.End)

		content := strings.TrimSpace(string(r.pending[contentStart:contentEnd]))
		r.pending = append(r.pending[:start], r.pending[spanEnd:]...)

		return Segment{Type: t, Content: content}, true
	}
	return Segment{}, false
}

// indexFold is bytes.Index with ASCII case folding. Markers are pure ASCII, so
// non-ASCII bytes in the haystack can never match and folding them is unnecessary.
func indexFold(s, sep []byte) int {
	n := len(sep)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= len(s); i++ {
		if lowerASCII(s[i]) != lowerASCII(sep[0]) {
			continue
		}
		j := 1
		for j < n && lowerASCII(s[i+j]) == lowerASCII(sep[j]) {
			j++
		}
		if j == n {
			return i
		}
	}
	return -1
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
