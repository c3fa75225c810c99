package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is meant for development
// and tests; records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryKey]Record
}

type memoryKey struct {
	phone   string
	purpose Purpose
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memoryKey{rec.PhoneNumber, rec.Purpose}] = *rec
	return nil
}

func (s *MemoryStore) Find(_ context.Context, phone string, purpose Purpose, token string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[memoryKey{phone, purpose}]
	if !ok || rec.VerificationToken != token {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, phone string, purpose Purpose, token string, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{phone, purpose}
	rec, ok := s.records[key]
	if !ok || rec.VerificationToken != token {
		return 0, ErrNotFound
	}
	if rec.Attempts >= max {
		return rec.Attempts, ErrAttemptLimit
	}
	rec.Attempts++
	s.records[key] = rec
	return rec.Attempts, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, phone string, purpose Purpose, token string, max int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{phone, purpose}
	rec, ok := s.records[key]
	if !ok || rec.VerificationToken != token || rec.Verified || rec.Attempts >= max || rec.Expired(at) {
		return ErrConflict
	}
	rec.Verified = true
	rec.VerifiedAt = &at
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, memoryKey{phone, purpose})
	return nil
}

func (s *MemoryStore) DeleteIssuance(_ context.Context, phone string, purpose Purpose, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{phone, purpose}
	if rec, ok := s.records[key]; ok && rec.VerificationToken == token {
		delete(s.records, key)
	}
	return nil
}

func (s *MemoryStore) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, rec := range s.records {
		if rec.CreatedAt.Before(before) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
