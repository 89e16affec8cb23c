package segment

import (
	"strings"

	"ai-sqlnotebook-be/internal/entity"
)

// EntrySink receives the entry after every mutation. Implementations must not
// retain the pointer past the call; the entry keeps changing while streaming.
type EntrySink interface {
	EntryUpdated(entry *entity.NotebookEntry)
}

type EntrySinkFunc func(entry *entity.NotebookEntry)

func (f EntrySinkFunc) EntryUpdated(entry *entity.NotebookEntry) {
	f(entry)
}

// Router folds extracted segments into a notebook entry.
type Router struct {
	sink EntrySink
}

func NewRouter(sink EntrySink) *Router {
	return &Router{sink: sink}
}

// Route appends sql segments to SqlQueries and everything else as a chunk of the
// current output, then publishes the entry synchronously.
func (r *Router) Route(entry *entity.NotebookEntry, seg Segment) {
	if seg.Type.IsSQL() {
		entry.AppendSQL(seg.Content)
	} else {
		entry.AppendChunk(strings.ToLower(string(seg.Type)), seg.Content)
	}

	if r.sink != nil {
		r.sink.EntryUpdated(entry)
	}
}
