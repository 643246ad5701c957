package dispatch

import (
	"context"
	"sync"
	"time"

	"imaged/pkg/types"
)

// HandleStore keeps asynchronous job records so callers can poll them by
// handle. Records expire after the store's TTL.
type HandleStore interface {
	Put(ctx context.Context, rec types.JobResult) error
	// Get returns ErrJobNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (types.JobResult, error)
	Delete(ctx context.Context, id string) error
}

const defaultJobTTL = time.Hour

// MemoryStore is an in-process HandleStore.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memoryRecord
}

type memoryRecord struct {
	rec       types.JobResult
	expiresAt time.Time
}

// NewMemoryStore returns a store whose records expire ttl after their last
// update. A non-positive ttl selects one hour.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Put(_ context.Context, rec types.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, r := range s.records {
		if now.After(r.expiresAt) {
			delete(s.records, id)
		}
	}
	rec.Result = append([]string(nil), rec.Result...)
	s.records[rec.JobID] = memoryRecord{rec: rec, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || s.now().After(r.expiresAt) {
		return types.JobResult{}, ErrJobNotFound(id)
	}
	out := r.rec
	out.Result = append([]string(nil), r.rec.Result...)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}
