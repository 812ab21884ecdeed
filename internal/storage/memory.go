package storage

import (
	"context"
	"sync"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

// MemoryStore keeps the call slot in process memory
type MemoryStore struct {
	current *models.CallRecord
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveCall(ctx context.Context, record *models.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && record.Version < m.current.Version {
		return nil
	}

	m.current = copyRecord(record)
	return nil
}

func (m *MemoryStore) LoadCall(ctx context.Context) (*models.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoCall
	}
	return copyRecord(m.current), nil
}

func copyRecord(record *models.CallRecord) *models.CallRecord {
	copied := *record
	if record.Response != nil {
		response := *record.Response
		copied.Response = &response
	}
	return &copied
}
