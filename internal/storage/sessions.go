package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
)

// CreateSession inserts a new session row.
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *model.Session) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(session); err != nil {
		return err
	}

	documents, factors, claim, lookup, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, choice, documents, factors, claim, price_lookup, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, string(session.Status), string(session.Choice),
		documents, factors, claim, lookup,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession loads a session by id. Returns common.ErrSessionNotFound when
// no row exists.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, choice, documents, factors, claim, price_lookup, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// SaveSession overwrites a session row.
func (s *SQLiteStorage) SaveSession(ctx context.Context, session *model.Session) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(session); err != nil {
		return err
	}

	documents, factors, claim, lookup, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, choice = ?, documents = ?, factors = ?, claim = ?, price_lookup = ?, updated_at = ?
		WHERE id = ?`,
		string(session.Status), string(session.Choice),
		documents, factors, claim, lookup,
		session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", session.ID, common.ErrSessionNotFound)
	}
	return nil
}

// ListSessions returns sessions matching the filter, most recently active
// first.
func (s *SQLiteStorage) ListSessions(ctx context.Context, filter service.SessionFilter) ([]model.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, status, choice, documents, factors, claim, price_lookup, created_at, updated_at
		FROM sessions`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan session: %w", scanErr)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// marshalSessionBlobs serializes the structured session fields to nullable
// JSON columns.
func marshalSessionBlobs(session *model.Session) (documents, factors, claim, lookup sql.NullString, err error) {
	toNull := func(v any, name string) (sql.NullString, error) {
		data, marshalErr := json.Marshal(v)
		if marshalErr != nil {
			return sql.NullString{}, fmt.Errorf("failed to marshal session %s: %w", name, marshalErr)
		}
		return sql.NullString{String: string(data), Valid: true}, nil
	}

	if len(session.Documents) > 0 {
		if documents, err = toNull(session.Documents, "documents"); err != nil {
			return
		}
	}
	if session.Factors != nil {
		if factors, err = toNull(session.Factors, "factors"); err != nil {
			return
		}
	}
	if session.Claim != nil {
		if claim, err = toNull(session.Claim, "claim"); err != nil {
			return
		}
	}
	if session.PriceLookup != nil {
		if lookup, err = toNull(session.PriceLookup, "price lookup"); err != nil {
			return
		}
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var session model.Session
	var status, choice string
	var documents, factors, claim, lookup sql.NullString

	err := row.Scan(&session.ID, &status, &choice,
		&documents, &factors, &claim, &lookup,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	session.Status = model.Status(status)
	session.Choice = model.DocumentChoice(strings.TrimSpace(choice))
	session.Documents = make(map[model.DocumentType]*model.DocumentData)

	if documents.Valid {
		if err := json.Unmarshal([]byte(documents.String), &session.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session documents: %w", err)
		}
	}
	if factors.Valid {
		session.Factors = &model.PolicyFactors{}
		if err := json.Unmarshal([]byte(factors.String), session.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session factors: %w", err)
		}
	}
	if claim.Valid {
		session.Claim = &model.ClaimResult{}
		if err := json.Unmarshal([]byte(claim.String), session.Claim); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session claim: %w", err)
		}
	}
	if lookup.Valid {
		session.PriceLookup = &model.PriceLookup{}
		if err := json.Unmarshal([]byte(lookup.String), session.PriceLookup); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session price lookup: %w", err)
		}
	}

	return &session, nil
}
