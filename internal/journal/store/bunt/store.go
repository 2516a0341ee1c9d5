// Package bunt keeps journal entries in an embedded buntdb file so the CLI
// works without any server.
package bunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/buntdb"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
)

const (
	keyPrefix = "entry:"
	// InMemory opens a store that is never written to disk.
	InMemory = ":memory:"
)

// Store is a journal.Source backed by buntdb. Each entry is stored as JSON
// under entry:<id>.
type Store struct {
	db     *buntdb.DB
	logger *slog.Logger
}

// Open opens or creates the store at path. A leading ~ is expanded to the
// user's home directory and missing parent directories are created.
func Open(path string) (*Store, error) {
	if path != InMemory {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expanding store path %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		path = expanded
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening entry store %s: %w", path, err)
	}
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "entry-store-bunt", "path", path),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put creates or replaces an entry.
func (s *Store) Put(rec document.Record) error {
	data, err := journal.EncodeRecord(rec)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyPrefix+rec.ID, string(data), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("storing entry %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes an entry. Unknown ids are ErrEntryNotFound.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + id)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return fmt.Errorf("entry %s: %w", id, apperrors.ErrEntryNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	return nil
}

// Entry returns one entry.
func (s *Store) Entry(id string) (document.Record, error) {
	var value string
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		value, err = tx.Get(keyPrefix + id)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return document.Record{}, fmt.Errorf("entry %s: %w", id, apperrors.ErrEntryNotFound)
	}
	if err != nil {
		return document.Record{}, fmt.Errorf("reading entry %s: %w", id, err)
	}
	return journal.DecodeRecord([]byte(value))
}

// Entries returns every stored entry in key order. Entries that no longer
// decode are logged and left out.
func (s *Store) Entries(ctx context.Context) ([]document.Record, error) {
	var records []document.Record
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(keyPrefix+"*", func(key, value string) bool {
			if ctx.Err() != nil {
				return false
			}
			rec, err := journal.DecodeRecord([]byte(value))
			if err != nil {
				s.logger.Warn("skipping undecodable entry", "key", key, "error", err)
				return true
			}
			records = append(records, rec)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(keyPrefix+"*", func(_, _ string) bool {
			n++
			return true
		})
	})
	return n, err
}
