package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is the content of one non-sql segment attached to an Output.
type Chunk struct {
	Type    string
	Content string
}

// Output is one versioned, ordered collection of chunks.
type Output struct {
	Version int
	Chunks  []Chunk
}

// NotebookEntry is one user query plus everything the stream produced for it.
// It is append-only while streaming.
type NotebookEntry struct {
	Id         uuid.UUID
	NotebookId uuid.UUID
	UserId     uuid.UUID
	UserPrompt string
	SqlQueries []string
	Outputs    []Output
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

func NewNotebookEntry(notebookId, userId uuid.UUID, prompt string) *NotebookEntry {
	return &NotebookEntry{
		Id:         uuid.New(),
		NotebookId: notebookId,
		UserId:     userId,
		UserPrompt: prompt,
		SqlQueries: []string{},
		Outputs:    []Output{},
		CreatedAt:  time.Now(),
	}
}

func (e *NotebookEntry) AppendSQL(query string) {
	e.SqlQueries = append(e.SqlQueries, query)
}

// AppendChunk adds a chunk to the current output, creating version 1 on first use.
func (e *NotebookEntry) AppendChunk(chunkType, content string) {
	if len(e.Outputs) == 0 {
		e.Outputs = append(e.Outputs, Output{Version: 1, Chunks: []Chunk{}})
	}
	last := &e.Outputs[len(e.Outputs)-1]
	last.Chunks = append(last.Chunks, Chunk{Type: chunkType, Content: content})
}

// CurrentOutput returns the output being streamed into, or nil before the first chunk.
func (e *NotebookEntry) CurrentOutput() *Output {
	if len(e.Outputs) == 0 {
		return nil
	}
	return &e.Outputs[len(e.Outputs)-1]
}

// SegmentCount is the number of segments applied so far.
func (e *NotebookEntry) SegmentCount() int {
	n := len(e.SqlQueries)
	for _, o := range e.Outputs {
		n += len(o.Chunks)
	}
	return n
}

func (e *NotebookEntry) Clone() *NotebookEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.SqlQueries = append([]string{}, e.SqlQueries...)
	c.Outputs = make([]Output, len(e.Outputs))
	for i, o := range e.Outputs {
		c.Outputs[i] = Output{Version: o.Version, Chunks: append([]Chunk{}, o.Chunks...)}
	}
	if e.UpdatedAt != nil {
		t := *e.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
