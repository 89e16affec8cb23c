package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"ai-sqlnotebook-be/internal/constant"
	"ai-sqlnotebook-be/internal/dto"
	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/pkg/logger"
	"ai-sqlnotebook-be/internal/repository/memory"
	"ai-sqlnotebook-be/internal/repository/specification"
	"ai-sqlnotebook-be/internal/repository/unitofwork"
	"ai-sqlnotebook-be/pkg/events"
	"ai-sqlnotebook-be/pkg/querystream"
	"ai-sqlnotebook-be/pkg/segment"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	entryModule         = "NotebookEntryService"
	defaultHistorySize  = 5
	defaultReadBuffer   = 4096
	queryPayloadVersion = 1

	opUpdateEntry = "update entry"
)

type INotebookEntryService interface {
	Submit(ctx context.Context, userId uuid.UUID, req *dto.SubmitQueryRequest) (*dto.NotebookEntryResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID, notebookId uuid.UUID) ([]*dto.NotebookEntryResponse, error)
}

type NotebookEntryOptions struct {
	HistoryWindow  int
	ReadBufferSize int
}

type notebookEntryService struct {
	uowFactory       unitofwork.RepositoryFactory
	opener           querystream.Opener
	grammar          *segment.Grammar
	submissions      *memory.SubmissionRepository
	delivery         RenderingDelivery
	eventPublisher   EventPublisher
	publisherService IPublisherService
	logger           logger.ILogger

	historyWindow  int
	readBufferSize int
}

func NewNotebookEntryService(
	uowFactory unitofwork.RepositoryFactory,
	opener querystream.Opener,
	grammar *segment.Grammar,
	submissions *memory.SubmissionRepository,
	delivery RenderingDelivery,
	eventPublisher EventPublisher,
	publisherService IPublisherService,
	log logger.ILogger,
	opts NotebookEntryOptions,
) INotebookEntryService {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistorySize
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBuffer
	}
	return &notebookEntryService{
		uowFactory:       uowFactory,
		opener:           opener,
		grammar:          grammar,
		submissions:      submissions,
		delivery:         delivery,
		eventPublisher:   eventPublisher,
		publisherService: publisherService,
		logger:           log,
		historyWindow:    opts.HistoryWindow,
		readBufferSize:   opts.ReadBufferSize,
	}
}

// submission is the state of one in-flight query. It is owned by the goroutine
// running Submit and never shared.
type submission struct {
	lifecycle *entryLifecycle
	userId    uuid.UUID
	notebook  *entity.Notebook
	entry     *entity.NotebookEntry
	persisted bool
}

func (s *notebookEntryService) Submit(ctx context.Context, userId uuid.UUID, req *dto.SubmitQueryRequest) (*dto.NotebookEntryResponse, error) {
	if !s.submissions.Acquire(userId) {
		return nil, ErrSubmissionInFlight
	}
	defer s.submissions.Release(userId)

	ctx, span := otel.Tracer("notebook-entry-service").Start(ctx, "NotebookEntryService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userId.String()))

	sub := &submission{lifecycle: newEntryLifecycle(), userId: userId}

	entry, err := s.run(ctx, sub, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("notebook.id", entry.NotebookId.String()),
		attribute.String("entry.id", entry.Id.String()),
		attribute.Int("entry.segments", entry.SegmentCount()),
	)
	return dto.NewNotebookEntryResponse(entry), nil
}

func (s *notebookEntryService) run(ctx context.Context, sub *submission, req *dto.SubmitQueryRequest) (*entity.NotebookEntry, error) {
	if err := sub.lifecycle.Transition(StateCreating); err != nil {
		return nil, err
	}

	notebook, err := s.resolveNotebook(ctx, sub.userId, req)
	if err != nil {
		return nil, s.fail(ctx, sub, err)
	}
	sub.notebook = notebook

	uow := s.uowFactory.NewUnitOfWork(ctx)

	history, err := uow.NotebookEntryRepository().FindRecent(ctx, notebook.Id, s.historyWindow)
	if err != nil {
		return nil, s.fail(ctx, sub, persistenceError("load history", err))
	}

	sub.entry = entity.NewNotebookEntry(notebook.Id, sub.userId, req.Prompt)
	if err := uow.NotebookEntryRepository().Create(ctx, sub.entry); err != nil {
		return nil, s.fail(ctx, sub, persistenceError("create entry", err))
	}
	sub.persisted = true
	s.submissions.Attach(sub.userId, notebook.Id, sub.entry.Id)
	s.publishEntry(sub.userId, sub.entry)

	if err := sub.lifecycle.Transition(StateStreaming); err != nil {
		return nil, err
	}

	body, err := s.opener.Open(ctx, querystream.Request{
		ProjectId:       notebook.ProjectId,
		ChatHistory:     toChatHistory(history),
		NotebookId:      notebook.Id,
		NotebookEntryId: sub.entry.Id,
		Version:         queryPayloadVersion,
	})
	if err != nil {
		return nil, s.fail(ctx, sub, transportError("open stream", err))
	}
	defer body.Close()

	reassembler := segment.NewReassembler(s.grammar)
	router := segment.NewRouter(segment.EntrySinkFunc(func(e *entity.NotebookEntry) {
		s.publishEntry(sub.userId, e)
	}))

	if err := s.drain(body, reassembler, router, sub.entry); err != nil {
		return nil, s.fail(ctx, sub, transportError("read stream", err))
	}

	if err := sub.lifecycle.Transition(StateFinalizing); err != nil {
		return nil, err
	}

	if seg, ok := reassembler.Flush(); ok {
		router.Route(sub.entry, seg)
	}

	now := time.Now()
	sub.entry.UpdatedAt = &now
	if err := uow.NotebookEntryRepository().Update(ctx, sub.entry); err != nil {
		return nil, s.fail(ctx, sub, persistenceError(opUpdateEntry, err))
	}

	if notebook.HasDefaultTitle() {
		s.requestTitle(ctx, notebook, sub)
	}

	if err := sub.lifecycle.Transition(StateDone); err != nil {
		return nil, err
	}

	sqlCount := len(sub.entry.SqlQueries)
	s.publishEvent(ctx, events.NewEntryCompleted(sub.userId, notebook.Id, sub.entry.Id, sqlCount, sub.entry.SegmentCount()-sqlCount))
	s.logger.Info(entryModule, "Entry completed", map[string]interface{}{
		"entry_id":    sub.entry.Id.String(),
		"notebook_id": notebook.Id.String(),
		"sql_count":   sqlCount,
		"segments":    sub.entry.SegmentCount(),
	})

	return sub.entry, nil
}

// drain runs the sequential read loop. Segments are routed in extraction order
// and each one is published before the next read is issued.
func (s *notebookEntryService) drain(body io.Reader, reassembler *segment.Reassembler, router *segment.Router, entry *entity.NotebookEntry) error {
	buf := make([]byte, s.readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, seg := range reassembler.Consume(buf[:n]) {
				router.Route(entry, seg)
			}
		}
		if errors.Is(err, io.EOF) {
			if pending := reassembler.Pending(); pending > 0 {
				s.logger.Debug(entryModule, "Stream ended with undelimited bytes", map[string]interface{}{
					"entry_id": entry.Id.String(),
					"bytes":    pending,
				})
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *notebookEntryService) resolveNotebook(ctx context.Context, userId uuid.UUID, req *dto.SubmitQueryRequest) (*entity.Notebook, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if req.NotebookId != nil {
		notebook, err := uow.NotebookRepository().FindOne(ctx,
			specification.ByID{ID: *req.NotebookId},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, persistenceError("load notebook", err)
		}
		if notebook == nil {
			return nil, ErrNotebookNotFound
		}
		return notebook, nil
	}

	notebook := &entity.Notebook{
		Id:        uuid.New(),
		Title:     entity.DefaultNotebookTitle,
		ProjectId: req.ProjectId,
		UserId:    userId,
		CreatedAt: time.Now(),
	}
	if err := uow.NotebookRepository().Create(ctx, notebook); err != nil {
		return nil, persistenceError("create notebook", err)
	}
	return notebook, nil
}

// fail moves the submission to Failed. With no applied segments the persisted
// entry is deleted and withdrawn from the client; otherwise the partial entry
// is saved and stays visible.
func (s *notebookEntryService) fail(ctx context.Context, sub *submission, cause error) error {
	if err := sub.lifecycle.Transition(StateFailed); err != nil {
		s.logger.Error(entryModule, "Lifecycle transition rejected", map[string]interface{}{"error": err.Error()})
	}

	var entryErr *EntryError
	if !errors.As(cause, &entryErr) {
		// Domain errors such as a missing notebook happen before anything is persisted.
		return cause
	}

	// The request context may already be cancelled; cleanup must still reach the store.
	cleanupCtx := context.WithoutCancel(ctx)
	details := map[string]interface{}{
		"user_id": sub.userId.String(),
		"kind":    string(entryErr.Kind),
		"op":      entryErr.Op,
		"error":   entryErr.Err.Error(),
	}

	notice := dto.Notice{Level: constant.NoticeLevelError, Message: constant.NoticeEntryRolledBack}
	if sub.notebook != nil {
		notice.NotebookId = &sub.notebook.Id
	}

	switch {
	case sub.entry == nil:
		entryErr.RolledBack = true
		if sub.notebook == nil {
			notice.Message = constant.NoticeNotebookCreate
		}

	case sub.entry.SegmentCount() == 0:
		entryErr.RolledBack = true
		notice.EntryId = &sub.entry.Id
		if sub.persisted {
			uow := s.uowFactory.NewUnitOfWork(cleanupCtx)
			if err := uow.NotebookEntryRepository().Delete(cleanupCtx, sub.entry.Id); err != nil {
				details["rollback_error"] = err.Error()
			}
			s.delivery.Send(sub.userId, constant.WsEventEntryRemoved, map[string]interface{}{
				"id":         sub.entry.Id,
				"notebookId": sub.entry.NotebookId,
			})
		}

	default:
		notice.Level = constant.NoticeLevelWarning
		notice.Message = constant.NoticeEntryPartial
		notice.EntryId = &sub.entry.Id
		// A failed final update is not retried.
		if entryErr.Op != opUpdateEntry {
			now := time.Now()
			sub.entry.UpdatedAt = &now
			uow := s.uowFactory.NewUnitOfWork(cleanupCtx)
			if err := uow.NotebookEntryRepository().Update(cleanupCtx, sub.entry); err != nil {
				details["persist_partial_error"] = err.Error()
			}
		}
	}

	details["rolled_back"] = entryErr.RolledBack
	s.logger.Error(entryModule, "Submission failed", details)
	s.delivery.Send(sub.userId, constant.WsEventNotice, notice)

	var notebookId, entryId uuid.UUID
	if sub.notebook != nil {
		notebookId = sub.notebook.Id
	}
	if sub.entry != nil {
		entryId = sub.entry.Id
	}
	s.publishEvent(cleanupCtx, events.NewEntryFailed(sub.userId, notebookId, entryId, string(entryErr.Kind), entryErr.RolledBack, entryErr.Err.Error()))

	return entryErr
}

// requestTitle hands the title off to the background worker. Errors are logged
// and never affect the entry.
func (s *notebookEntryService) requestTitle(ctx context.Context, notebook *entity.Notebook, sub *submission) {
	if s.publisherService == nil {
		return
	}
	msg, err := json.Marshal(dto.GenerateTitleMessage{
		NotebookId: notebook.Id,
		UserId:     sub.userId,
		Prompt:     sub.entry.UserPrompt,
	})
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn(entryModule, "Failed to request notebook title", map[string]interface{}{
			"notebook_id": notebook.Id.String(),
			"error":       err.Error(),
		})
	}
}

func (s *notebookEntryService) publishEntry(userId uuid.UUID, entry *entity.NotebookEntry) {
	s.delivery.Send(userId, constant.WsEventEntryUpdated, dto.NewNotebookEntryResponse(entry))
}

func (s *notebookEntryService) publishEvent(ctx context.Context, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn(entryModule, "Failed to publish event", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

func (s *notebookEntryService) GetAll(ctx context.Context, userId uuid.UUID, notebookId uuid.UUID) ([]*dto.NotebookEntryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	notebook, err := uow.NotebookRepository().FindOne(ctx,
		specification.ByID{ID: notebookId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if notebook == nil {
		return nil, ErrNotebookNotFound
	}

	entries, err := uow.NotebookEntryRepository().FindAll(ctx,
		specification.ByNotebookID{NotebookID: notebookId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.NotebookEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, dto.NewNotebookEntryResponse(e))
	}
	return result, nil
}

// toChatHistory converts newest-first rows into the chronological context the
// query backend expects.
func toChatHistory(recent []*entity.NotebookEntry) []querystream.HistoryEntry {
	history := make([]querystream.HistoryEntry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		outputs := make([]querystream.HistoryOutput, 0, len(e.Outputs))
		for _, o := range e.Outputs {
			chunks := make([]querystream.HistoryChunk, 0, len(o.Chunks))
			for _, c := range o.Chunks {
				chunks = append(chunks, querystream.HistoryChunk{Type: c.Type, Content: c.Content})
			}
			outputs = append(outputs, querystream.HistoryOutput{Version: o.Version, Chunks: chunks})
		}
		history = append(history, querystream.HistoryEntry{
			UserPrompt: e.UserPrompt,
			SqlQueries: append([]string{}, e.SqlQueries...),
			Outputs:    outputs,
			CreatedAt:  e.CreatedAt,
		})
	}
	return history
}
