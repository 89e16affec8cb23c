package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/repository/contract"
	"ai-sqlnotebook-be/internal/repository/specification"
	"ai-sqlnotebook-be/internal/repository/unitofwork"
	"ai-sqlnotebook-be/pkg/events"
	"ai-sqlnotebook-be/pkg/querystream"

	"github.com/google/uuid"
)

// memStore backs the fake repositories. Specifications are interpreted by type
// since there is no SQL underneath.
type memStore struct {
	mu        sync.Mutex
	notebooks map[uuid.UUID]*entity.Notebook
	entries   map[uuid.UUID]*entity.NotebookEntry

	createNotebookErr error
	createEntryErr    error
	updateEntryErr    error
	findRecentErr     error

	entryUpdates int
	entryDeletes []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		notebooks: make(map[uuid.UUID]*entity.Notebook),
		entries:   make(map[uuid.UUID]*entity.NotebookEntry),
	}
}

func (s *memStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUnitOfWork{store: s}
}

func (s *memStore) entry(id uuid.UUID) *entity.NotebookEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.Clone()
	}
	return nil
}

func (s *memStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memStore) notebookCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notebooks)
}

type memUnitOfWork struct {
	store *memStore
}

func (u *memUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *memUnitOfWork) Commit() error                   { return nil }
func (u *memUnitOfWork) Rollback() error                 { return nil }

func (u *memUnitOfWork) NotebookRepository() contract.NotebookRepository {
	return &memNotebookRepository{store: u.store}
}

func (u *memUnitOfWork) NotebookEntryRepository() contract.NotebookEntryRepository {
	return &memEntryRepository{store: u.store}
}

func matchNotebook(n *entity.Notebook, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if n.Id != sp.ID {
				return false
			}
		case specification.UserOwnedBy:
			if n.UserId != sp.UserID {
				return false
			}
		case specification.ByProjectID:
			if n.ProjectId != sp.ProjectID {
				return false
			}
		case specification.FilterBy:
			if sp.Field == "title" && n.Title != sp.Value {
				return false
			}
		}
	}
	return true
}

func matchEntry(e *entity.NotebookEntry, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if e.Id != sp.ID {
				return false
			}
		case specification.ByNotebookID:
			if e.NotebookId != sp.NotebookID {
				return false
			}
		case specification.UserOwnedBy:
			if e.UserId != sp.UserID {
				return false
			}
		}
	}
	return true
}

type memNotebookRepository struct {
	store *memStore
}

func (r *memNotebookRepository) Create(ctx context.Context, n *entity.Notebook) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.createNotebookErr != nil {
		return r.store.createNotebookErr
	}
	c := *n
	r.store.notebooks[n.Id] = &c
	return nil
}

func (r *memNotebookRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string, specs ...specification.Specification) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notebooks[id]
	if !ok || !matchNotebook(n, specs) {
		return 0, nil
	}
	n.Title = title
	return 1, nil
}

func (r *memNotebookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.notebooks, id)
	return nil
}

func (r *memNotebookRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Notebook, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range r.store.notebooks {
		if matchNotebook(n, specs) {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memNotebookRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Notebook, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Notebook
	for _, n := range r.store.notebooks {
		if matchNotebook(n, specs) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memEntryRepository struct {
	store *memStore
}

func (r *memEntryRepository) Create(ctx context.Context, e *entity.NotebookEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.createEntryErr != nil {
		return r.store.createEntryErr
	}
	r.store.entries[e.Id] = e.Clone()
	return nil
}

func (r *memEntryRepository) Update(ctx context.Context, e *entity.NotebookEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.updateEntryErr != nil {
		return r.store.updateEntryErr
	}
	if _, ok := r.store.entries[e.Id]; !ok {
		return errors.New("record not found")
	}
	r.store.entryUpdates++
	r.store.entries[e.Id] = e.Clone()
	return nil
}

func (r *memEntryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entryDeletes = append(r.store.entryDeletes, id)
	delete(r.store.entries, id)
	return nil
}

func (r *memEntryRepository) DeleteByNotebookId(ctx context.Context, notebookId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, e := range r.store.entries {
		if e.NotebookId == notebookId {
			delete(r.store.entries, id)
		}
	}
	return nil
}

func (r *memEntryRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.NotebookEntry, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *memEntryRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.NotebookEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.NotebookEntry
	for _, e := range r.store.entries {
		if matchEntry(e, specs) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memEntryRepository) FindRecent(ctx context.Context, notebookId uuid.UUID, limit int, specs ...specification.Specification) ([]*entity.NotebookEntry, error) {
	if r.store.findRecentErr != nil {
		return nil, r.store.findRecentErr
	}
	all, _ := r.FindAll(ctx, append(specs, specification.ByNotebookID{NotebookID: notebookId})...)
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// scriptedBody returns one scripted chunk per Read and then err (io.EOF by default).
type scriptedBody struct {
	chunks []string
	err    error
	reads  int
	closed bool

	// onRead runs before each chunk is returned; used to observe what was
	// published before the read.
	onRead func(read int)
}

func (b *scriptedBody) Read(p []byte) (int, error) {
	if b.onRead != nil {
		b.onRead(b.reads)
	}
	if b.reads >= len(b.chunks) {
		b.reads++
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[b.reads])
	b.reads++
	return n, nil
}

func (b *scriptedBody) Close() error {
	b.closed = true
	return nil
}

type fakeOpener struct {
	body     *scriptedBody
	err      error
	requests []querystream.Request
}

func (o *fakeOpener) Open(ctx context.Context, req querystream.Request) (io.ReadCloser, error) {
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return o.body, nil
}

type deliveredMessage struct {
	UserID    uuid.UUID
	EventType string
	Data      interface{}
}

type recordingDelivery struct {
	mu       sync.Mutex
	messages []deliveredMessage
}

func (d *recordingDelivery) Send(userID uuid.UUID, eventType string, data interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, deliveredMessage{UserID: userID, EventType: eventType, Data: data})
}

func (d *recordingDelivery) ofType(eventType string) []deliveredMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []deliveredMessage
	for _, m := range d.messages {
		if m.EventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

type recordingEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingEventPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingPublisherService struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *recordingPublisherService) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}
