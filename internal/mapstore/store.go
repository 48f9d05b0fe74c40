package mapstore

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

// Record links one tracked item to its conversation thread.
type Record struct {
	ItemID      string    `json:"-"`
	ThreadID    string    `json:"threadId"`
	ProjectName string    `json:"projectName"`
	MappedAt    time.Time `json:"mappedAt"`
}

type persistedState struct {
	Mappings map[string]Record `json:"mappings"`
}

// StateBackend persists the full mapping snapshot. Load returning (nil, nil)
// means no prior state.
type StateBackend interface {
	Load() (*persistedState, error)
	Save(state *persistedState) error
}

type stateBackendCloser interface {
	Close() error
}

// Store is the durable item-to-thread mapping table. Every successful Put is
// flushed to the backend before it returns.
type Store struct {
	mu       sync.RWMutex
	backend  StateBackend
	mappings map[string]Record
	byThread map[string]string
	now      func() time.Time
}

func NewStore(backend StateBackend) (*Store, error) {
	s := &Store{
		backend:  backend,
		mappings: map[string]Record{},
		byThread: map[string]string{},
		now:      time.Now,
	}
	if err := s.loadFromBackend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadFromBackend() error {
	if s.backend == nil {
		return nil
	}
	snapshot, err := s.backend.Load()
	if err != nil {
		return err
	}
	if snapshot == nil || snapshot.Mappings == nil {
		return nil
	}
	for itemID, rec := range snapshot.Mappings {
		rec.ItemID = itemID
		s.mappings[itemID] = rec
		s.byThread[rec.ThreadID] = itemID
	}
	return nil
}

// Get returns the mapping for itemID if one exists.
func (s *Store) Get(itemID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.mappings[itemID]
	return rec, ok
}

// GetReverse returns the item that owns threadID if one exists.
func (s *Store) GetReverse(threadID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	itemID, ok := s.byThread[threadID]
	return itemID, ok
}

// Put creates or overwrites the mapping for itemID and flushes it to the
// backend before returning. Calling twice with the same arguments leaves
// state equivalent to calling once.
func (s *Store) Put(itemID, threadID, projectName string) (Record, error) {
	if itemID == "" || threadID == "" {
		return Record{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.mappings[itemID]; ok && prev.ThreadID == threadID && prev.ProjectName == projectName {
		return prev, nil
	}

	rec := Record{
		ItemID:      itemID,
		ThreadID:    threadID,
		ProjectName: projectName,
		MappedAt:    s.now().UTC(),
	}
	prev, hadPrev := s.mappings[itemID]
	s.mappings[itemID] = rec
	if hadPrev && prev.ThreadID != threadID {
		delete(s.byThread, prev.ThreadID)
	}
	s.byThread[threadID] = itemID

	if err := s.saveLocked(); err != nil {
		if hadPrev {
			s.mappings[itemID] = prev
			s.byThread[prev.ThreadID] = itemID
			if prev.ThreadID != threadID {
				delete(s.byThread, threadID)
			}
		} else {
			delete(s.mappings, itemID)
			delete(s.byThread, threadID)
		}
		return Record{}, err
	}
	slog.Info("mapped item to thread", "item_id", itemID, "thread_id", threadID, "project", projectName)
	return rec, nil
}

// All returns a snapshot of every mapping, keyed by item ID.
func (s *Store) All() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.mappings))
	for itemID, rec := range s.mappings {
		out[itemID] = rec
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// Recent returns up to n mappings ordered newest first.
func (s *Store) Recent(n int) []Record {
	s.mu.RLock()
	records := make([]Record, 0, len(s.mappings))
	for _, rec := range s.mappings {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].MappedAt.Equal(records[j].MappedAt) {
			return records[i].ItemID < records[j].ItemID
		}
		return records[i].MappedAt.After(records[j].MappedAt)
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records
}

// Flush rewrites the current snapshot to the backend.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Close flushes and releases the backend if it holds resources.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if closer, ok := s.backend.(stateBackendCloser); ok {
		return closer.Close()
	}
	return nil
}

func (s *Store) saveLocked() error {
	if s.backend == nil {
		return nil
	}
	snapshot := persistedState{Mappings: make(map[string]Record, len(s.mappings))}
	for itemID, rec := range s.mappings {
		snapshot.Mappings[itemID] = rec
	}
	return s.backend.Save(&snapshot)
}
