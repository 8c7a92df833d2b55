package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by [Store.Update] when the key is absent.
var ErrNotFound = errors.New("session not found")

// Op tells [Store.Update] what to do with the entry after the callback ran.
type Op uint8

const (
	// OpKeep leaves the stored entry untouched.
	OpKeep Op = iota
	// OpReplace stores the entry returned by the callback.
	OpReplace
	// OpDelete removes the entry.
	OpDelete
)

// AfterFunc arms a one-shot timer. It matches [time.AfterFunc] minus the
// returned timer, which the store never needs.
type AfterFunc func(d time.Duration, f func())

// Option customizes a [Store].
type Option func(*Store)

// WithAfterFunc replaces the timer primitive used by [Store.ScheduleExpiry].
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.afterFunc = fn
		}
	}
}

// WithOnExpire registers a hook invoked, outside the lock, for every entry an
// expiry timer deleted.
func WithOnExpire(fn func(Entry)) Option {
	return func(s *Store) {
		s.onExpire = fn
	}
}

// Store maps session keys to entries. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry

	afterFunc AfterFunc
	onExpire  func(Entry)
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entry stored under key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	return e, ok
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	return ok
}

// Set stores payload under key, replacing any previous entry.
func (s *Store) Set(key string, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = Entry{Key: key, Payload: payload}
}

// Insert stores payload under key unless key is already present. It reports
// whether the entry was stored.
func (s *Store) Insert(key string, payload Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = Entry{Key: key, Payload: payload}
	return true
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Update runs fn against the entry stored under key with the lock held and
// applies the returned [Op]. The op is applied even when fn also returns an
// error, so a callback can record a failed attempt and report it in one step.
func (s *Store) Update(key string, fn func(Entry) (Entry, Op, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[key]
	if !ok {
		return ErrNotFound
	}

	next, op, err := fn(cur)
	switch op {
	case OpReplace:
		next.Key = key
		s.entries[key] = next
	case OpDelete:
		delete(s.entries, key)
	}
	return err
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Snapshot lists every entry without secrets, ordered by key.
func (s *Store) Snapshot() []Summary {
	s.mu.Lock()
	out := make([]Summary, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, summarize(e))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
