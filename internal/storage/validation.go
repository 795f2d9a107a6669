package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clarivue/claimpilot/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidPriceRecord = errors.New("invalid price record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSession validates a session before it is persisted.
func validateSession(session *model.Session) error {
	if session == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if session.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSession)
	}
	if session.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidSession)
	}
	return nil
}

// validatePriceRecord validates a price record before it is persisted.
func validatePriceRecord(record *model.PriceRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPriceRecord)
	}
	if record.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidPriceRecord)
	}
	if record.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidPriceRecord)
	}
	return nil
}
