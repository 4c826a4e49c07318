// Package history keeps the session's ordered log of completed attempts.
package history

import (
	"sync"
	"time"
)

// Outcome tags an Entry as a success or a failure.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Entry is one completed attempt. Exactly one of Text (Success) or Error
// (Failure) is meaningful; use NewSuccess and NewFailure to build one.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Outcome      Outcome   `json:"outcome"`
	Text         string    `json:"text,omitempty"`
	Error        string    `json:"error,omitempty"`
	AttemptID    string    `json:"attempt_id,omitempty"`
	DocumentName string    `json:"document_name,omitempty"`
	MediaType    string    `json:"media_type,omitempty"`
	Instruction  string    `json:"instruction,omitempty"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
}

// NewSuccess builds a Success entry carrying text.
func NewSuccess(text string) Entry {
	return Entry{Outcome: Success, Text: text}
}

// NewFailure builds a Failure entry. An empty message is replaced so a
// failure never reads as blank.
func NewFailure(message string) Entry {
	if message == "" {
		message = "An unknown error occurred"
	}
	return Entry{Outcome: Failure, Error: message}
}

// OK reports whether the entry is a success.
func (e Entry) OK() bool { return e.Outcome == Success }

// IDFormat is the layout of Entry.ID, derived from Timestamp.
const IDFormat = "20060102T150405.000000000Z"

// Store is an in-memory, most-recent-first history. It is safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   []Entry // newest first
	byID      map[string]int
	last      time.Time
	now       func() time.Time
	observers map[int]func(Entry)
	nextObs   int
}

// NewStore returns an empty Store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock returns an empty Store stamping entries with now.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		byID:      make(map[string]int),
		now:       now,
		observers: make(map[int]func(Entry)),
	}
}

// Record stamps e with a session-unique timestamp, prepends it and notifies
// observers. It returns the stored entry. Timestamps are strictly
// increasing: a clock reading at or before the previous stamp is moved one
// nanosecond past it.
func (s *Store) Record(e Entry) Entry {
	s.mu.Lock()
	ts := s.now().UTC()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Nanosecond)
	}
	s.last = ts
	e.Timestamp = ts
	e.ID = ts.Format(IDFormat)

	s.entries = append(s.entries, Entry{})
	copy(s.entries[1:], s.entries)
	s.entries[0] = e
	// Indexes count from the oldest entry so they survive prepends.
	s.byID[e.ID] = len(s.entries) - 1

	observers := make([]func(Entry), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(e)
	}
	return e
}

// All returns a copy of every entry, most recent first.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Recent returns at most limit entries starting offset entries from the
// newest. A limit <= 0 means no limit.
func (s *Store) Recent(limit, offset int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.entries) {
		return []Entry{}
	}
	end := len(s.entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Entry, end-offset)
	copy(out, s.entries[offset:end])
	return out
}

// Get looks up an entry by ID.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1-pos], true
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn to be called after every Record, outside the
// store's lock. fn must not block. The returned func removes it.
func (s *Store) Subscribe(fn func(Entry)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}
