/**
 * @description
 * In-memory OtpStore used when Redis is not configured (local development)
 * and by tests. Retention expunge happens lazily on Find, which is sufficient
 * for the single-node model.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/SharathVaidya/Smartpay/internal/domain"
)

type memoryOtpEntry struct {
	record   domain.OtpRecord
	storedAt time.Time
}

// MemoryOtpStore is a process-local OtpStore.
type MemoryOtpStore struct {
	mu      sync.Mutex
	entries map[string]memoryOtpEntry
	now     func() time.Time
}

// NewMemoryOtpStore creates an empty in-memory store.
func NewMemoryOtpStore() *MemoryOtpStore {
	return &MemoryOtpStore{
		entries: make(map[string]memoryOtpEntry),
		now:     time.Now,
	}
}

// Find returns the active record for a username, or ErrOtpNotFound. Records
// older than the retention window are dropped on access.
func (s *MemoryOtpStore) Find(ctx context.Context, username string) (*domain.OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[username]
	if !ok {
		return nil, ErrOtpNotFound
	}
	if s.now().Sub(entry.storedAt) >= domain.OtpRetention {
		delete(s.entries, username)
		return nil, ErrOtpNotFound
	}

	record := entry.record
	return &record, nil
}

// Upsert overwrites the record and restarts the retention window.
func (s *MemoryOtpStore) Upsert(ctx context.Context, record *domain.OtpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[record.Username] = memoryOtpEntry{record: *record, storedAt: s.now()}
	return nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *MemoryOtpStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, username)
	return nil
}
