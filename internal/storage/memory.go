package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// MemoryStore keeps records in process. With a filename it also persists
// them as a JSON array after every insert.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*models.CanonicalRecord
	order    []string
	filename string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.CanonicalRecord)}
}

func NewFileStore(filename string) (*MemoryStore, error) {
	ms := NewMemoryStore()
	ms.filename = filename

	if err := ms.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return ms, nil
}

func (ms *MemoryStore) Insert(ctx context.Context, rec *models.CanonicalRecord) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return Inserted, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := rec.Key()
	if _, exists := ms.records[key]; exists {
		return DuplicateKey, nil
	}

	ms.records[key] = rec
	ms.order = append(ms.order, key)

	if ms.filename != "" {
		if err := ms.save(); err != nil {
			delete(ms.records, key)
			ms.order = ms.order[:len(ms.order)-1]
			return Inserted, fmt.Errorf("failed to persist record %s: %w", key, err)
		}
	}

	return Inserted, nil
}

func (ms *MemoryStore) Scan(ctx context.Context, namespace string, fn func(*models.CanonicalRecord) error) error {
	ms.mu.RLock()
	keys := make([]string, len(ms.order))
	copy(keys, ms.order)
	ms.mu.RUnlock()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		ms.mu.RLock()
		rec := ms.records[key]
		ms.mu.RUnlock()

		if namespace != "" && rec.Namespace != namespace {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	return nil
}

func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.order)
}

func (ms *MemoryStore) Close() error {
	return nil
}

func (ms *MemoryStore) save() error {
	docs := make([]*models.CanonicalRecord, 0, len(ms.order))
	for _, key := range ms.order {
		docs = append(docs, ms.records[key])
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}

	tmpFile := ms.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ms.filename)
}

func (ms *MemoryStore) load() error {
	data, err := os.ReadFile(ms.filename)
	if err != nil {
		return err
	}

	var docs []*models.CanonicalRecord
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("failed to decode %s: %w", ms.filename, err)
	}

	for _, rec := range docs {
		key := rec.Key()
		if _, exists := ms.records[key]; exists {
			continue
		}
		ms.records[key] = rec
		ms.order = append(ms.order, key)
	}
	return nil
}
