// Package store provides the durable key-value persistence layer used by
// all entity repositories. Values are JSON documents in a flat namespace
// backed by the local SQLite database; there is no in-memory cache, so
// every read hits storage.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/resqtap/resqtap/internal/database"
	"github.com/resqtap/resqtap/internal/loggy"
)

// Store defines the key-value persistence contract. A missing or corrupt
// value is reported as not-found rather than an error, so callers keep
// whatever fallback they were initialized with.
type Store interface {
	// GetJSON unmarshals the value stored under key into dest. It returns
	// false when the key is absent or the stored value cannot be parsed.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)

	// SetJSON marshals value and persists it under key.
	SetJSON(ctx context.Context, key string, value any) error

	// Remove deletes the value stored under key.
	Remove(ctx context.Context, key string) error
}

// SQLStore implements Store on the kv_store table
type SQLStore struct {
	db     *sql.DB
	logger *loggy.Logger
}

// NewSQLStore creates a new SQL-backed store
func NewSQLStore(db *sql.DB, logger *loggy.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

// GetJSON unmarshals the value stored under key into dest
func (s *SQLStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	q := squirrel.Select("value").
		From("kv_store").
		Where(squirrel.Eq{"key": key}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("building get query: %w", err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("executing get query: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// Corrupt value: the caller keeps its fallback
		s.logger.Warn("Failed to parse stored JSON", "key", key, "error", err)
		return false, nil
	}

	return true, nil
}

// SetJSON marshals value and persists it under key. The exists check and
// the write run in one transaction so concurrent writers cannot race the
// insert-or-update decision.
func (s *SQLStore) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value for key %q: %w", key, err)
	}

	now := time.Now().UTC()

	return database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		exists, err := s.hasKey(ctx, tx, key)
		if err != nil {
			return err
		}

		if !exists {
			q := squirrel.Insert("kv_store").
				Columns("key", "value", "updated_at").
				Values(key, string(raw), now)

			query, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("building insert query: %w", err)
			}

			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("executing insert query: %w", err)
			}
		} else {
			q := squirrel.Update("kv_store").
				Set("value", string(raw)).
				Set("updated_at", now).
				Where(squirrel.Eq{"key": key})

			query, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("building update query: %w", err)
			}

			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("executing update query: %w", err)
			}
		}

		return nil
	})
}

// Remove deletes the value stored under key
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	q := squirrel.Delete("kv_store").
		Where(squirrel.Eq{"key": key})

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing delete query: %w", err)
	}

	return nil
}

// hasKey reports whether a value is stored under key
func (s *SQLStore) hasKey(ctx context.Context, tx *sql.Tx, key string) (bool, error) {
	q := squirrel.Select("1").
		From("kv_store").
		Where(squirrel.Eq{"key": key}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}

	var one int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("executing exists query: %w", err)
	}

	return true, nil
}
