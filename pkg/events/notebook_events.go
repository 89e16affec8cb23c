package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotebookEntryCompleted = "NOTEBOOK_ENTRY_COMPLETED"
	NotebookEntryFailed    = "NOTEBOOK_ENTRY_FAILED"
	NotebookTitleGenerated = "NOTEBOOK_TITLE_GENERATED"
)

func NewEntryCompleted(userID, notebookID, entryID uuid.UUID, sqlCount, chunkCount int) BaseEvent {
	return BaseEvent{
		Type: NotebookEntryCompleted,
		Data: map[string]interface{}{
			"user_id":     userID.String(),
			"notebook_id": notebookID.String(),
			"entry_id":    entryID.String(),
			"sql_count":   sqlCount,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}

func NewEntryFailed(userID, notebookID, entryID uuid.UUID, kind string, rolledBack bool, reason string) BaseEvent {
	return BaseEvent{
		Type: NotebookEntryFailed,
		Data: map[string]interface{}{
			"user_id":     userID.String(),
			"notebook_id": notebookID.String(),
			"entry_id":    entryID.String(),
			"kind":        kind,
			"rolled_back": rolledBack,
			"reason":      reason,
		},
		OccurredAt: time.Now(),
	}
}

func NewTitleGenerated(userID, notebookID uuid.UUID, title string) BaseEvent {
	return BaseEvent{
		Type: NotebookTitleGenerated,
		Data: map[string]interface{}{
			"user_id":     userID.String(),
			"notebook_id": notebookID.String(),
			"title":       title,
		},
		OccurredAt: time.Now(),
	}
}
