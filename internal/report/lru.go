package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used results in memory and writes
// through to a backing Store, which also serves misses.
type LRUStore struct {
	mu    sync.Mutex
	limit int
	back  Store
	order *list.List // of *RunResult, most recent first
	index map[string]*list.Element
}

// NewLRUStore caches up to limit results in front of back. A limit below
// one is raised to one.
func NewLRUStore(limit int, back Store) *LRUStore {
	return &LRUStore{
		limit: max(limit, 1),
		back:  back,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Save caches result and persists it to the backing store.
func (s *LRUStore) Save(result *RunResult) error {
	s.put(result)
	return s.back.Save(result)
}

// Load serves runID from memory, or from the backing store on a miss.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	if el, ok := s.index[runID]; ok {
		s.order.MoveToFront(el)
		r := el.Value.(*RunResult)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(result)
	return result, nil
}

// Len returns the number of cached results.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *LRUStore) put(result *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.index[result.ID]; ok {
		el.Value = result
		s.order.MoveToFront(el)
		return
	}
	s.index[result.ID] = s.order.PushFront(result)
	for s.order.Len() > s.limit {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(*RunResult).ID)
	}
}
