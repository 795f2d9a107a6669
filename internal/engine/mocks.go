package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// MockStorage is an in-memory Storage implementation for tests.
type MockStorage struct {
	sessions map[string]*model.Session
	prices   map[string][]model.PriceRecord
	mu       sync.Mutex

	// SaveSessionErr, when set, is returned by SaveSession.
	SaveSessionErr error

	nextPriceID int64
}

// NewMockStorage creates an empty in-memory storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[string]*model.Session),
		prices:   make(map[string][]model.PriceRecord),
	}
}

// CreateSession stores a new session.
func (m *MockStorage) CreateSession(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

// GetSession returns a stored session or common.ErrSessionNotFound.
func (m *MockStorage) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	copied := *session
	return &copied, nil
}

// SaveSession overwrites a stored session.
func (m *MockStorage) SaveSession(_ context.Context, session *model.Session) error {
	if m.SaveSessionErr != nil {
		return m.SaveSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

// ListSessions returns stored sessions matching the filter.
func (m *MockStorage) ListSessions(_ context.Context, filter service.SessionFilter) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.sessions {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// PriceEntries returns the name/price pairs saved under a source.
func (m *MockStorage) PriceEntries(_ context.Context, source string) ([]model.PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []model.PriceEntry
	for _, r := range m.prices[source] {
		entries = append(entries, model.PriceEntry{Name: r.Name, Price: r.Price})
	}
	return entries, nil
}

// SavePriceEntry appends a price record under its source.
func (m *MockStorage) SavePriceEntry(_ context.Context, record *model.PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPriceID++
	copied := *record
	copied.ID = m.nextPriceID
	m.prices[record.Source] = append(m.prices[record.Source], copied)
	return nil
}

// ListPriceRecords returns all records saved under a source.
func (m *MockStorage) ListPriceRecords(_ context.Context, source string) ([]model.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PriceRecord(nil), m.prices[source]...), nil
}

// Migrate is a no-op.
func (m *MockStorage) Migrate(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MockStorage) Close() error { return nil }

// MockExtractor returns scripted DocumentData per document type.
type MockExtractor struct {
	// Data maps document type to the extraction result.
	Data map[model.DocumentType]*model.DocumentData
	// Errs maps document type to a forced error.
	Errs map[model.DocumentType]error

	mu    sync.Mutex
	calls []model.DocumentType
}

// Extract returns the scripted result for the document type.
func (m *MockExtractor) Extract(_ context.Context, _ model.Document, docType model.DocumentType) (*model.DocumentData, error) {
	m.mu.Lock()
	m.calls = append(m.calls, docType)
	m.mu.Unlock()

	if err, ok := m.Errs[docType]; ok && err != nil {
		return nil, err
	}
	data, ok := m.Data[docType]
	if !ok {
		return nil, fmt.Errorf("no scripted extraction for %s", docType)
	}
	return data, nil
}

// Calls returns the document types extracted so far.
func (m *MockExtractor) Calls() []model.DocumentType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DocumentType(nil), m.calls...)
}

// MockResolver returns a fixed price candidate.
type MockResolver struct {
	Candidate model.PriceCandidate
	Err       error
	Calls     int
}

// ResolvePrice returns the fixed candidate.
func (m *MockResolver) ResolvePrice(_ context.Context, queryText string) (model.PriceCandidate, error) {
	m.Calls++
	if m.Err != nil {
		return model.PriceCandidate{}, m.Err
	}
	c := m.Candidate
	c.QueryText = queryText
	return c, nil
}
