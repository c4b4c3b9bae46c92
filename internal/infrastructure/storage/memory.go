package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryArchive keeps snapshots in process memory. It backs local runs
// without object storage and tests of the archive subscriber.
type MemoryArchive struct {
	mu      sync.Mutex
	prefix  string
	objects map[string][]byte
	err     error
}

// NewMemoryArchive creates an empty archive using the default key layout
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{prefix: DefaultPrefix, objects: make(map[string][]byte)}
}

// FailWith makes subsequent uploads return err; nil restores normal behaviour
func (m *MemoryArchive) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ArchiveReceipt stores a copy of body under the same key S3Archive would use
func (m *MemoryArchive) ArchiveReceipt(_ context.Context, grnNumber string, at time.Time, body []byte) (string, error) {
	if grnNumber == "" {
		return "", errors.New("grn number is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	key := ArchiveKey(m.prefix, grnNumber, at)
	m.objects[key] = append([]byte(nil), body...)
	return key, nil
}

// Object returns a stored snapshot
func (m *MemoryArchive) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	return body, ok
}

// Len returns the number of stored snapshots
func (m *MemoryArchive) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
