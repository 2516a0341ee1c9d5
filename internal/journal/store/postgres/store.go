// Package postgres reads journal entries from the service's PostgreSQL
// database.
//
// It expects a journal_entries table:
//
//	CREATE TABLE journal_entries (
//	    id         TEXT PRIMARY KEY,
//	    kind       TEXT NOT NULL DEFAULT 'journal',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    text       TEXT NOT NULL DEFAULT '',
//	    label      TEXT,
//	    prompt     TEXT
//	);
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/postgres"
)

const (
	selectEntries = `SELECT id, kind, created_at, text, label, prompt FROM journal_entries ORDER BY created_at, id`
	selectEntry   = `SELECT id, kind, created_at, text, label, prompt FROM journal_entries WHERE id = $1`
)

// Store is a journal.Source backed by PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(client *postgres.Client) *Store {
	return NewFromDB(client.DB)
}

// NewFromDB wraps an already open pool.
func NewFromDB(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "entry-store-postgres"),
	}
}

// Entries loads every entry, oldest first.
func (s *Store) Entries(ctx context.Context) ([]document.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries)
	if err != nil {
		return nil, fmt.Errorf("%w: querying entries: %v", apperrors.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var records []document.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading entries: %v", apperrors.ErrSourceUnavailable, err)
	}
	s.logger.Debug("entries loaded", "count", len(records))
	return records, nil
}

// Entry loads a single entry by id.
func (s *Store) Entry(ctx context.Context, id string) (document.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectEntry, id))
	if errors.Is(err, sql.ErrNoRows) {
		return document.Record{}, fmt.Errorf("entry %s: %w", id, apperrors.ErrEntryNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (document.Record, error) {
	var (
		rec           document.Record
		kind          string
		label, prompt sql.NullString
	)
	if err := row.Scan(&rec.ID, &kind, &rec.CreatedAt, &rec.Text, &label, &prompt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return document.Record{}, err
		}
		return document.Record{}, fmt.Errorf("scanning entry row: %w", err)
	}
	rec.Kind = document.ParseKind(kind)
	rec.Label = label.String
	rec.Prompt = prompt.String
	return rec, nil
}
