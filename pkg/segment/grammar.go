package segment

import (
	"fmt"
	"strings"
)

// OutputType is the declared kind of a segment (sql, text, table, chart, ...).
type OutputType string

const (
	TypeSQL   OutputType = "sql"
	TypeText  OutputType = "text"
	TypeTable OutputType = "table"
	TypeChart OutputType = "chart"
)

// DefaultTypes is the enumeration used when none is configured.
// Order is scan priority.
var DefaultTypes = []OutputType{TypeSQL, TypeText, TypeTable, TypeChart}

func (t OutputType) IsSQL() bool {
	return strings.EqualFold(string(t), string(TypeSQL))
}

func (t OutputType) String() string {
	return string(t)
}

const markerFence = "====="

// Markers is the start/end delimiter pair of one output type.
type Markers struct {
	Start []byte
	End   []byte
}

// Grammar holds the ordered type enumeration and its marker table.
// The table is built once in NewGrammar and never recomputed while scanning.
type Grammar struct {
	types   []OutputType
	markers map[OutputType]Markers
}

func NewGrammar(types ...OutputType) (*Grammar, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("segment grammar needs at least one output type")
	}

	g := &Grammar{
		types:   make([]OutputType, 0, len(types)),
		markers: make(map[OutputType]Markers, len(types)),
	}

	seen := make(map[string]struct{}, len(types))
	for _, raw := range types {
		name := strings.ToLower(strings.TrimSpace(string(raw)))
		if err := validateTypeName(name); err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate output type %q", name)
		}
		seen[name] = struct{}{}

		t := OutputType(name)
		upper := strings.ToUpper(name)
		g.types = append(g.types, t)
		g.markers[t] = Markers{
			Start: []byte(markerFence + upper + markerFence),
			End:   []byte(markerFence + "END " + upper + markerFence),
		}
	}

	return g, nil
}

// MustGrammar panics on an invalid enumeration. Intended for package-level defaults.
func MustGrammar(types ...OutputType) *Grammar {
	g, err := NewGrammar(types...)
	if err != nil {
		panic(err)
	}
	return g
}

// ParseTypes splits a comma separated list such as "sql,text,table,chart".
func ParseTypes(csv string) []OutputType {
	var out []OutputType
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, OutputType(part))
	}
	return out
}

func validateTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("empty output type name")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return fmt.Errorf("output type %q: only ascii letters, digits, '_' and '-' are allowed", name)
		}
	}
	return nil
}

func (g *Grammar) Types() []OutputType {
	out := make([]OutputType, len(g.types))
	copy(out, g.types)
	return out
}

func (g *Grammar) Markers(t OutputType) (Markers, bool) {
	m, ok := g.markers[OutputType(strings.ToLower(string(t)))]
	return m, ok
}

// Lookup resolves a type name case-insensitively against the enumeration.
func (g *Grammar) Lookup(name string) (OutputType, bool) {
	t := OutputType(strings.ToLower(strings.TrimSpace(name)))
	_, ok := g.markers[t]
	return t, ok
}

// Frame wraps content in the markers of t. Used by tests and the replay tool.
func (g *Grammar) Frame(t OutputType, content string) string {
	m, ok := g.Markers(t)
	if !ok {
		return content
	}
	return string(m.Start) + content + string(m.End)
}
