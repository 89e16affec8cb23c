package mapper

import (
	"time"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/model"

	"gorm.io/datatypes"
)

type NotebookEntryMapper struct{}

func NewNotebookEntryMapper() *NotebookEntryMapper {
	return &NotebookEntryMapper{}
}

func (m *NotebookEntryMapper) ToEntity(e *model.NotebookEntry) *entity.NotebookEntry {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	sqlQueries := make([]string, len(e.SqlQueries))
	copy(sqlQueries, e.SqlQueries)

	outputs := make([]entity.Output, len(e.Outputs))
	for i, o := range e.Outputs {
		chunks := make([]entity.Chunk, len(o.Chunks))
		for j, c := range o.Chunks {
			chunks[j] = entity.Chunk{Type: c.Type, Content: c.Content}
		}
		outputs[i] = entity.Output{Version: o.Version, Chunks: chunks}
	}

	return &entity.NotebookEntry{
		Id:         e.Id,
		NotebookId: e.NotebookId,
		UserId:     e.UserId,
		UserPrompt: e.UserPrompt,
		SqlQueries: sqlQueries,
		Outputs:    outputs,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func (m *NotebookEntryMapper) ToModel(e *entity.NotebookEntry) *model.NotebookEntry {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	sqlQueries := make(datatypes.JSONSlice[string], len(e.SqlQueries))
	copy(sqlQueries, e.SqlQueries)

	outputs := make(datatypes.JSONSlice[model.OutputDocument], len(e.Outputs))
	for i, o := range e.Outputs {
		chunks := make([]model.ChunkDocument, len(o.Chunks))
		for j, c := range o.Chunks {
			chunks[j] = model.ChunkDocument{Type: c.Type, Content: c.Content}
		}
		outputs[i] = model.OutputDocument{Version: o.Version, Chunks: chunks}
	}

	return &model.NotebookEntry{
		Id:         e.Id,
		NotebookId: e.NotebookId,
		UserId:     e.UserId,
		UserPrompt: e.UserPrompt,
		SqlQueries: sqlQueries,
		Outputs:    outputs,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func (m *NotebookEntryMapper) ToEntities(entries []*model.NotebookEntry) []*entity.NotebookEntry {
	entities := make([]*entity.NotebookEntry, len(entries))
	for i, e := range entries {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
