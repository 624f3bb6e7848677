package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tidewatch/accesscore/internal/models"
)

// MemoryMFAFailureRepository is an in-process MFAFailureRepository.
type MemoryMFAFailureRepository struct {
	mu      sync.Mutex
	records map[string][]models.MFAFailureRecord // keyed by user id
}

// NewMemoryMFAFailureRepository creates an empty in-process failure repository.
func NewMemoryMFAFailureRepository() *MemoryMFAFailureRepository {
	return &MemoryMFAFailureRepository{
		records: make(map[string][]models.MFAFailureRecord),
	}
}

func (r *MemoryMFAFailureRepository) Record(_ context.Context, record *models.MFAFailureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	if copied.Timestamp.IsZero() {
		copied.Timestamp = time.Now()
	}

	r.records[copied.UserID] = append(r.records[copied.UserID], copied)
	return nil
}

func (r *MemoryMFAFailureRepository) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, record := range r.records[userID] {
		if !record.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryMFAFailureRepository) Reset(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, userID)
	return nil
}

func (r *MemoryMFAFailureRepository) DeleteOlderThan(_ context.Context, threshold time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for userID, records := range r.records {
		kept := records[:0]
		for _, record := range records {
			if record.Timestamp.Before(threshold) {
				removed++
				continue
			}
			kept = append(kept, record)
		}
		if len(kept) == 0 {
			delete(r.records, userID)
		} else {
			r.records[userID] = kept
		}
	}
	return removed, nil
}
