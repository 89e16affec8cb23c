package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-sqlnotebook-be/internal/constant"
	"ai-sqlnotebook-be/internal/dto"
	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/pkg/logger"
	"ai-sqlnotebook-be/internal/repository/memory"
	"ai-sqlnotebook-be/pkg/events"
	"ai-sqlnotebook-be/pkg/querystream"
	"ai-sqlnotebook-be/pkg/segment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryServiceFixture struct {
	store       *memStore
	opener      *fakeOpener
	submissions *memory.SubmissionRepository
	delivery    *recordingDelivery
	events      *recordingEventPublisher
	titles      *recordingPublisherService
	service     INotebookEntryService
}

func newEntryServiceFixture(t *testing.T, body *scriptedBody) *entryServiceFixture {
	t.Helper()
	f := &entryServiceFixture{
		store:       newMemStore(),
		opener:      &fakeOpener{body: body},
		submissions: memory.NewSubmissionRepository(time.Minute),
		delivery:    &recordingDelivery{},
		events:      &recordingEventPublisher{},
		titles:      &recordingPublisherService{},
	}
	f.service = NewNotebookEntryService(
		f.store,
		f.opener,
		segment.MustGrammar(segment.DefaultTypes...),
		f.submissions,
		f.delivery,
		f.events,
		f.titles,
		logger.NewNopLogger(),
		NotebookEntryOptions{HistoryWindow: 5, ReadBufferSize: 1024},
	)
	return f
}

func (f *entryServiceFixture) seedNotebook(userId uuid.UUID, title string) *entity.Notebook {
	n := &entity.Notebook{
		Id:        uuid.New(),
		Title:     title,
		ProjectId: uuid.New(),
		UserId:    userId,
		CreatedAt: time.Now(),
	}
	f.store.notebooks[n.Id] = n
	return n
}

func lastEntryUpdate(t *testing.T, d *recordingDelivery) *dto.NotebookEntryResponse {
	t.Helper()
	updates := d.ofType(constant.WsEventEntryUpdated)
	require.NotEmpty(t, updates)
	return updates[len(updates)-1].Data.(*dto.NotebookEntryResponse)
}

func TestSubmitEndToEndStream(t *testing.T) {
	body := &scriptedBody{chunks: []string{
		"=====TEXT=====Result:",
		" here is data=====END TEXT=====",
		"=====SQL=====SELECT * FROM t=====END SQL=====",
	}}
	f := newEntryServiceFixture(t, body)

	publishedBeforeRead := make([]int, 0, 4)
	var snapshotBeforeSQL *dto.NotebookEntryResponse
	body.onRead = func(read int) {
		updates := f.delivery.ofType(constant.WsEventEntryUpdated)
		publishedBeforeRead = append(publishedBeforeRead, len(updates))
		if read == 2 {
			snapshotBeforeSQL = updates[len(updates)-1].Data.(*dto.NotebookEntryResponse)
		}
	}

	userId := uuid.New()
	projectId := uuid.New()
	res, err := f.service.Submit(context.Background(), userId, &dto.SubmitQueryRequest{
		ProjectId: projectId,
		Prompt:    "show me t",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT * FROM t"}, res.SqlQueries)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, 1, res.Outputs[0].Version)
	assert.Equal(t, []dto.ChunkResponse{{Type: "text", Content: "Result: here is data"}}, res.Outputs[0].Chunks)

	// the empty entry is visible before the first read, the text chunk before the sql read
	assert.Equal(t, []int{1, 1, 2, 3}, publishedBeforeRead)
	require.NotNil(t, snapshotBeforeSQL)
	assert.Empty(t, snapshotBeforeSQL.SqlQueries)
	assert.Len(t, snapshotBeforeSQL.Outputs, 1)

	assert.True(t, body.closed)
	assert.Equal(t, 1, f.store.notebookCount())

	stored := f.store.entry(res.Id)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"SELECT * FROM t"}, stored.SqlQueries)
	assert.Equal(t, "Result: here is data", stored.Outputs[0].Chunks[0].Content)

	require.Len(t, f.opener.requests, 1)
	req := f.opener.requests[0]
	assert.Equal(t, projectId, req.ProjectId)
	assert.Equal(t, res.NotebookId, req.NotebookId)
	assert.Equal(t, res.Id, req.NotebookEntryId)
	assert.Equal(t, 1, req.Version)
	assert.Empty(t, req.ChatHistory)

	assert.Equal(t, []string{events.NotebookEntryCompleted}, f.events.types())

	require.Len(t, f.titles.payloads, 1, "new notebooks carry the default title")
	var msg dto.GenerateTitleMessage
	require.NoError(t, json.Unmarshal(f.titles.payloads[0], &msg))
	assert.Equal(t, res.NotebookId, msg.NotebookId)
	assert.Equal(t, userId, msg.UserId)
	assert.Equal(t, "show me t", msg.Prompt)

	_, busy := f.submissions.Get(userId)
	assert.False(t, busy, "busy flag released")
}

func TestSubmitEmptyResponse(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})

	res, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "anything",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{}, res.SqlQueries)
	assert.Equal(t, []dto.OutputResponse{}, res.Outputs)
	assert.NotNil(t, f.store.entry(res.Id))
}

func TestSubmitTrailingPartialIsDiscarded(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{chunks: []string{"=====TEXT=====hello"}})

	res, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
	assert.Empty(t, res.SqlQueries)
}

func TestSubmitExistingNotebookSendsRecentHistory(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{chunks: []string{"=====TEXT=====ok=====END TEXT====="}})
	userId := uuid.New()
	notebook := f.seedNotebook(userId, "Revenue by region")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		e := entity.NewNotebookEntry(notebook.Id, userId, fmt.Sprintf("prompt %d", i))
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		e.AppendSQL(fmt.Sprintf("select %d", i))
		f.store.entries[e.Id] = e
	}

	_, err := f.service.Submit(context.Background(), userId, &dto.SubmitQueryRequest{
		NotebookId: &notebook.Id,
		ProjectId:  notebook.ProjectId,
		Prompt:     "prompt 7",
	})
	require.NoError(t, err)

	require.Len(t, f.opener.requests, 1)
	history := f.opener.requests[0].ChatHistory
	require.Len(t, history, 5)
	for i, h := range history {
		assert.Equal(t, fmt.Sprintf("prompt %d", i+2), h.UserPrompt)
		assert.Equal(t, []string{fmt.Sprintf("select %d", i+2)}, h.SqlQueries)
	}

	assert.Empty(t, f.titles.payloads, "renamed notebooks keep their title")
	assert.Equal(t, 1, f.store.notebookCount())
}

func TestSubmitUnknownNotebook(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})
	owner := uuid.New()
	notebook := f.seedNotebook(owner, entity.DefaultNotebookTitle)

	_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		NotebookId: &notebook.Id,
		ProjectId:  notebook.ProjectId,
		Prompt:     "p",
	})
	assert.ErrorIs(t, err, ErrNotebookNotFound)
	assert.Equal(t, 0, f.store.entryCount())
	assert.Empty(t, f.opener.requests)
}

func TestSubmitOpenFailureRollsBack(t *testing.T) {
	f := newEntryServiceFixture(t, nil)
	f.opener.err = &querystream.StatusError{StatusCode: 503, Body: "down"}
	userId := uuid.New()

	_, err := f.service.Submit(context.Background(), userId, &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, KindTransport, entryErr.Kind)
	assert.True(t, entryErr.RolledBack)
	assert.Equal(t, 502, entryErr.StatusCode())
	assert.True(t, IsTransportError(err))
	assert.Equal(t, constant.ErrMessageQueryBackend, entryErr.PublicMessage())
	assert.NotContains(t, entryErr.PublicMessage(), entryErr.Err.Error())

	var statusErr *querystream.StatusError
	assert.ErrorAs(t, err, &statusErr)

	assert.Equal(t, 0, f.store.entryCount())
	assert.Len(t, f.store.entryDeletes, 1)
	assert.Len(t, f.delivery.ofType(constant.WsEventEntryRemoved), 1)

	notices := f.delivery.ofType(constant.WsEventNotice)
	require.Len(t, notices, 1)
	notice := notices[0].Data.(dto.Notice)
	assert.Equal(t, constant.NoticeLevelError, notice.Level)
	assert.Equal(t, userId, notices[0].UserID)

	assert.Equal(t, []string{events.NotebookEntryFailed}, f.events.types())
	assert.Empty(t, f.titles.payloads)

	_, busy := f.submissions.Get(userId)
	assert.False(t, busy)
}

func TestSubmitReadFailureBeforeFirstSegmentRollsBack(t *testing.T) {
	body := &scriptedBody{
		chunks: []string{"=====TEXT=====half"},
		err:    errors.New("connection reset"),
	}
	f := newEntryServiceFixture(t, body)

	_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, KindTransport, entryErr.Kind)
	assert.True(t, entryErr.RolledBack)
	assert.True(t, body.closed)
	assert.Equal(t, 0, f.store.entryCount())
	assert.Len(t, f.delivery.ofType(constant.WsEventEntryRemoved), 1)
}

func TestSubmitReadFailureAfterSegmentKeepsPartial(t *testing.T) {
	body := &scriptedBody{
		chunks: []string{"=====SQL=====select 1=====END SQL=====", "=====TEXT=====never"},
		err:    errors.New("connection reset"),
	}
	f := newEntryServiceFixture(t, body)

	_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.False(t, entryErr.RolledBack)
	assert.True(t, body.closed)

	require.Equal(t, 1, f.store.entryCount())
	last := lastEntryUpdate(t, f.delivery)
	stored := f.store.entry(last.Id)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"select 1"}, stored.SqlQueries)
	assert.Empty(t, stored.Outputs)

	assert.Empty(t, f.delivery.ofType(constant.WsEventEntryRemoved))
	notices := f.delivery.ofType(constant.WsEventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, constant.NoticeLevelWarning, notices[0].Data.(dto.Notice).Level)
}

func TestSubmitCreateEntryFailure(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})
	f.store.createEntryErr = errors.New("insert rejected")

	_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, KindPersistence, entryErr.Kind)
	assert.True(t, entryErr.RolledBack)
	assert.Equal(t, 500, entryErr.StatusCode())
	assert.False(t, IsTransportError(err))
	assert.Equal(t, constant.ErrMessageEntryStorage, entryErr.PublicMessage())

	assert.Empty(t, f.opener.requests, "stream is opened only after the entry is persisted")
	assert.Empty(t, f.delivery.ofType(constant.WsEventEntryUpdated))
	assert.Empty(t, f.delivery.ofType(constant.WsEventEntryRemoved))
	assert.Len(t, f.delivery.ofType(constant.WsEventNotice), 1)
}

func TestSubmitCreateNotebookFailure(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})
	f.store.createNotebookErr = errors.New("insert rejected")

	_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, KindPersistence, entryErr.Kind)

	notices := f.delivery.ofType(constant.WsEventNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, constant.NoticeNotebookCreate, notices[0].Data.(dto.Notice).Message)
	assert.Equal(t, 0, f.store.entryCount())
}

func TestSubmitFinalUpdateFailure(t *testing.T) {
	t.Run("with segments keeps the entry", func(t *testing.T) {
		f := newEntryServiceFixture(t, &scriptedBody{chunks: []string{"=====SQL=====select 1=====END SQL====="}})
		f.store.updateEntryErr = errors.New("update rejected")

		_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
			ProjectId: uuid.New(),
			Prompt:    "p",
		})

		var entryErr *EntryError
		require.ErrorAs(t, err, &entryErr)
		assert.Equal(t, KindPersistence, entryErr.Kind)
		assert.False(t, entryErr.RolledBack)
		assert.Equal(t, 1, f.store.entryCount())
		assert.Empty(t, f.titles.payloads)
	})

	t.Run("without segments rolls back", func(t *testing.T) {
		f := newEntryServiceFixture(t, &scriptedBody{})
		f.store.updateEntryErr = errors.New("update rejected")

		_, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
			ProjectId: uuid.New(),
			Prompt:    "p",
		})

		var entryErr *EntryError
		require.ErrorAs(t, err, &entryErr)
		assert.True(t, entryErr.RolledBack)
		assert.Equal(t, 0, f.store.entryCount())
	})
}

func TestSubmitTitleFailureDoesNotFailEntry(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{chunks: []string{"=====TEXT=====ok=====END TEXT====="}})
	f.titles.err = errors.New("topic closed")

	res, err := f.service.Submit(context.Background(), uuid.New(), &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 1)
	assert.Equal(t, []string{events.NotebookEntryCompleted}, f.events.types())
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})
	userId := uuid.New()
	require.True(t, f.submissions.Acquire(userId))

	_, err := f.service.Submit(context.Background(), userId, &dto.SubmitQueryRequest{
		ProjectId: uuid.New(),
		Prompt:    "p",
	})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Empty(t, f.opener.requests)

	_, busy := f.submissions.Get(userId)
	assert.True(t, busy, "the holder's flag is untouched")
}

func TestNotebookEntryGetAll(t *testing.T) {
	f := newEntryServiceFixture(t, &scriptedBody{})
	userId := uuid.New()
	notebook := f.seedNotebook(userId, "Sales")
	other := f.seedNotebook(userId, "Other")

	base := time.Now()
	for i := 0; i < 3; i++ {
		e := entity.NewNotebookEntry(notebook.Id, userId, fmt.Sprintf("q%d", i))
		e.CreatedAt = base.Add(time.Duration(i) * time.Second)
		f.store.entries[e.Id] = e
	}
	stray := entity.NewNotebookEntry(other.Id, userId, "elsewhere")
	f.store.entries[stray.Id] = stray

	res, err := f.service.GetAll(context.Background(), userId, notebook.Id)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, e := range res {
		assert.Equal(t, fmt.Sprintf("q%d", i), e.UserPrompt)
	}

	_, err = f.service.GetAll(context.Background(), uuid.New(), notebook.Id)
	assert.ErrorIs(t, err, ErrNotebookNotFound)
}

func TestToChatHistoryIsChronological(t *testing.T) {
	newest := entity.NewNotebookEntry(uuid.New(), uuid.New(), "newest")
	newest.AppendChunk("text", "b")
	oldest := entity.NewNotebookEntry(uuid.New(), uuid.New(), "oldest")

	history := toChatHistory([]*entity.NotebookEntry{newest, oldest})
	require.Len(t, history, 2)
	assert.Equal(t, "oldest", history[0].UserPrompt)
	assert.Equal(t, "newest", history[1].UserPrompt)
	assert.Equal(t, []querystream.HistoryOutput{{Version: 1, Chunks: []querystream.HistoryChunk{{Type: "text", Content: "b"}}}}, history[1].Outputs)
}
