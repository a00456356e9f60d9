package storage

import (
	"context"
	"errors"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// ErrDuplicateKey reports a record whose (marketplace, id) is already stored.
var ErrDuplicateKey = errors.New("duplicate key")

type InsertResult int

const (
	Inserted InsertResult = iota
	DuplicateKey
)

func (r InsertResult) String() string {
	if r == DuplicateKey {
		return "duplicate"
	}
	return "inserted"
}

// Store is the catalog document store. Insert never overwrites: a second
// insert of the same key returns DuplicateKey and leaves the first document.
type Store interface {
	Insert(ctx context.Context, rec *models.CanonicalRecord) (InsertResult, error)
	// Scan visits records in insertion order. An empty namespace visits all.
	Scan(ctx context.Context, namespace string, fn func(*models.CanonicalRecord) error) error
	Close() error
}

// ResultOf folds a backend error into an InsertResult.
func ResultOf(err error) (InsertResult, error) {
	if err == nil {
		return Inserted, nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		return DuplicateKey, nil
	}
	return Inserted, err
}
