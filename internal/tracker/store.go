// Package tracker persists per-recipient subscription state.
package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	logx "voucherbot/pkg/logx"
)

// Store provides the subscription operations on top of a Backend.
//
// The backend holds the whole mapping as one document, so every mutating
// operation is a load-modify-save cycle. The store mutex makes that cycle a
// single critical section; without it two concurrent subscribes for
// different recipients could clobber each other.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     logx.Logger
}

func NewStore(backend Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{backend: backend, log: log.With(logx.String("comp", "tracker.store"))}
}

// LoadAll returns the full subscription mapping.
// A corrupted entry is skipped with a warning, never fatal to the load.
func (s *Store) LoadAll(ctx context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// SaveAll persists the full mapping (last writer wins).
func (s *Store) SaveAll(ctx context.Context, users map[string]Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, users)
}

// Subscribe upserts a record with Notified=false and a fresh timestamp.
// Re-subscribing a notified recipient makes them eligible again.
func (s *Store) Subscribe(ctx context.Context, recipientID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	users[recipientID] = Record{
		Username:  username,
		TrackedAt: time.Now(),
		Notified:  false,
	}
	return s.saveLocked(ctx, users)
}

// Unsubscribe removes the record if present and reports whether it existed.
func (s *Store) Unsubscribe(ctx context.Context, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := users[recipientID]; !ok {
		return false, nil
	}
	delete(users, recipientID)
	return true, s.saveLocked(ctx, users)
}

func (s *Store) IsSubscribed(ctx context.Context, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	_, ok := users[recipientID]
	return ok, nil
}

func (s *Store) Get(ctx context.Context, recipientID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return Record{}, false, err
	}
	r, ok := users[recipientID]
	return r, ok, nil
}

// MarkNotified sets Notified=true on an existing record; no-op if absent.
func (s *Store) MarkNotified(ctx context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	r, ok := users[recipientID]
	if !ok {
		return nil
	}
	r.Notified = true
	users[recipientID] = r
	return s.saveLocked(ctx, users)
}

// Candidates returns the recipients with Notified=false. Order is
// unspecified; dispatch treats the result as a set.
func (s *Store) Candidates(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for id, r := range users {
		if !r.Notified {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) loadLocked(ctx context.Context) (map[string]Record, error) {
	data, ok, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	users := map[string]Record{}
	if !ok || len(data) == 0 {
		return users, nil
	}

	// Decode entry by entry so one corrupt value doesn't lose the rest.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("tracked users document unreadable, starting empty", logx.Err(err))
		return users, nil
	}
	for id, rv := range raw {
		var r Record
		if err := json.Unmarshal(rv, &r); err != nil {
			s.log.Warn("skipping corrupt subscription entry", logx.String("recipient", id), logx.Err(err))
			continue
		}
		users[id] = r
	}
	return users, nil
}

func (s *Store) saveLocked(ctx context.Context, users map[string]Record) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return s.backend.Save(ctx, data)
}
