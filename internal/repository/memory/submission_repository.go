package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// InFlightSubmission records the entry a user is currently streaming into.
type InFlightSubmission struct {
	UserID     uuid.UUID
	NotebookID uuid.UUID
	EntryID    uuid.UUID
	StartedAt  time.Time
}

// SubmissionRepository is the per-user busy flag. At most one submission per user
// is in flight; the TTL only reclaims flags leaked by a crashed request.
type SubmissionRepository struct {
	cache *cache.Cache
}

func NewSubmissionRepository(ttl time.Duration) *SubmissionRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SubmissionRepository{
		cache: cache.New(ttl, ttl/2),
	}
}

// Acquire sets the busy flag and reports false if one is already held.
func (r *SubmissionRepository) Acquire(userID uuid.UUID) bool {
	err := r.cache.Add(userID.String(), &InFlightSubmission{
		UserID:    userID,
		StartedAt: time.Now(),
	}, cache.DefaultExpiration)
	return err == nil
}

// Attach records which notebook and entry the held flag belongs to.
func (r *SubmissionRepository) Attach(userID, notebookID, entryID uuid.UUID) {
	if x, found := r.cache.Get(userID.String()); found {
		s := *x.(*InFlightSubmission)
		s.NotebookID = notebookID
		s.EntryID = entryID
		r.cache.Set(userID.String(), &s, cache.DefaultExpiration)
	}
}

func (r *SubmissionRepository) Get(userID uuid.UUID) (*InFlightSubmission, bool) {
	if x, found := r.cache.Get(userID.String()); found {
		return x.(*InFlightSubmission), true
	}
	return nil, false
}

func (r *SubmissionRepository) Release(userID uuid.UUID) {
	r.cache.Delete(userID.String())
}
