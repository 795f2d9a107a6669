package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/clarivue/claimpilot/internal/model"
)

// PriceEntries returns the name/price pairs stored under a source, ordered
// by name so matching iterates deterministically.
func (s *SQLiteStorage) PriceEntries(ctx context.Context, source string) ([]model.PriceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, price FROM prices WHERE source = ? ORDER BY name`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.PriceEntry
	for rows.Next() {
		var entry model.PriceEntry
		if err := rows.Scan(&entry.Name, &entry.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price entries: %w", err)
	}
	return entries, nil
}

// SavePriceEntry upserts a price record under its source. An existing row
// for the same (source, name) keeps its id but takes the new price.
func (s *SQLiteStorage) SavePriceEntry(ctx context.Context, record *model.PriceRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePriceRecord(record); err != nil {
		return err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prices (source, name, hospital_name, price, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, name) DO UPDATE SET
			price = excluded.price,
			hospital_name = excluded.hospital_name,
			origin = excluded.origin`,
		record.Source, record.Name, record.HospitalName,
		record.Price, record.Origin, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save price entry: %w", err)
	}
	return nil
}

// ListPriceRecords returns all records stored under a source with their
// provenance.
func (s *SQLiteStorage) ListPriceRecords(ctx context.Context, source string) ([]model.PriceRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, name, hospital_name, price, origin, created_at
		FROM prices WHERE source = ? ORDER BY name`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query price records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.PriceRecord
	for rows.Next() {
		var record model.PriceRecord
		if err := rows.Scan(&record.ID, &record.Source, &record.Name,
			&record.HospitalName, &record.Price, &record.Origin, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price records: %w", err)
	}
	return records, nil
}
