package llmcall

import (
	"context"
	"slices"
	"sync"
	"time"
)

// DefaultCapacity is the number of calls kept when none is configured.
const DefaultCapacity = 500

// Store keeps the most recent LLM calls in memory.
// When full, the oldest call is evicted.
type Store struct {
	mu       sync.RWMutex
	capacity int
	calls    []Call // oldest first
}

// NewStore creates a store holding at most capacity calls.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	SessionID string
	Stage     string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Add stores a call, evicting the oldest when full.
func (s *Store) Add(call Call) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.calls) >= s.capacity {
		copy(s.calls, s.calls[1:])
		s.calls = s.calls[:len(s.calls)-1]
	}
	s.calls = append(s.calls, call)
}

// Len returns the number of stored calls.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

// Get retrieves a single LLM call by ID. Returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.calls {
		if s.calls[i].ID == id {
			c := s.calls[i]
			return &c, nil
		}
	}
	return nil, nil
}

// List retrieves LLM calls matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Call
	skipped := 0
	for i := len(s.calls) - 1; i >= 0; i-- {
		c := s.calls[i]
		if !filter.matches(c) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Trace returns the calls of one dialogue session, oldest first.
// It returns nil, nil when the store holds no call of the session.
func (s *Store) Trace(ctx context.Context, sessionID string) (*Trace, error) {
	calls, err := s.List(ctx, QueryFilter{SessionID: sessionID})
	if err != nil || len(calls) == 0 {
		return nil, err
	}
	slices.Reverse(calls)
	return newTrace(sessionID, calls), nil
}

func (f QueryFilter) matches(c Call) bool {
	switch {
	case f.SessionID != "" && c.SessionID != f.SessionID:
		return false
	case f.Stage != "" && c.Stage != f.Stage:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Model != "" && c.Model != f.Model:
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	}
	return true
}
