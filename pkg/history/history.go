// Package history provides a bounded in-memory record of resolved
// batches. Records are lost when the process restarts. Optional LRU
// eviction limits memory usage.
package history

import (
	"container/list"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
)

// ErrNotFound is returned when no record exists for an ID.
var ErrNotFound = errors.New("batch record not found")

// BatchRecord captures one resolved batch run.
type BatchRecord struct {
	ID         string                  `json:"id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Results    []api.ModelStreamResult `json:"results"`
}

type entry struct {
	record  *BatchRecord
	lruElem *list.Element
}

// Store is an in-memory batch record store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

// New creates a store. If maxSize is 0 the store grows without limit;
// otherwise the least recently used record is evicted at capacity.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Save stores a record. Saving an ID twice is an error.
func (s *Store) Save(record *BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[record.ID]; exists {
		return errors.New("duplicate batch record id")
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(record.ID)
	s.entries[record.ID] = &entry{record: record, lruElem: elem}
	return nil
}

// Get retrieves a record by ID and marks it recently used.
func (s *Store) Get(id string) (*BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.record, nil
}

// List returns up to limit records, newest first. A non-positive limit
// returns all records.
func (s *Store) List(limit int) []*BatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*BatchRecord, 0, len(s.entries))
	for _, e := range s.entries {
		records = append(records, e.record)
	}
	// Newest first, ID as tiebreaker for a stable order.
	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.After(records[j].StartedAt)
		}
		return records[i].ID > records[j].ID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOldest removes the least recently used record.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
