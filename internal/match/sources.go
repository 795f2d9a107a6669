package match

import (
	"context"

	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// storageSource adapts a stored reference price table to the PriceSource
// interface. The tables are read-only at runtime, so entries can be read
// concurrently without locking.
type storageSource struct {
	storage service.Storage
	name    string
}

// NewStorageSource returns a price source backed by the named reference
// table in storage.
func NewStorageSource(name string, storage service.Storage) service.PriceSource {
	return &storageSource{name: name, storage: storage}
}

func (s *storageSource) Name() string {
	return s.name
}

func (s *storageSource) Entries(ctx context.Context) ([]model.PriceEntry, error) {
	return s.storage.PriceEntries(ctx, s.name)
}

// StaticSource is a fixed in-memory price source, used for tests and for
// small bundled reference tables.
type StaticSource struct {
	SourceName string
	Table      []model.PriceEntry
}

// Name returns the source name.
func (s *StaticSource) Name() string {
	return s.SourceName
}

// Entries returns the fixed table.
func (s *StaticSource) Entries(_ context.Context) ([]model.PriceEntry, error) {
	return s.Table, nil
}
