// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore implements the document backend on BadgerDB.
//
// It plays the role of the browser-resident document store: JSON
// documents under keys of the form "<table>/<id>", listed by prefix
// scan. BadgerDB gives local embedded storage with low-latency access
// (~100µs), which keeps per-entity CRUD cheap enough that the service
// can mirror every relational write here without a noticeable cost.
//
// Bulk writes for one table run inside a single read-write transaction,
// so each table commits as a unit.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/cognia/services/backup/storage"
)

// Config holds configuration for the document store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for hermetic tests: in-memory
// mode, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements storage.Backend on BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions
// provide isolation.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

var _ storage.Backend = (*Store)(nil)

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates and opens the document store.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an in-memory store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Kind reports the document backend identity.
func (s *Store) Kind() storage.Kind {
	return storage.KindDocument
}

// key builds the storage key for (table, id).
func key(table storage.Table, id string) []byte {
	return []byte(table.String() + "/" + id)
}

func prefix(table storage.Table) []byte {
	return []byte(table.String() + "/")
}

// Get returns the document stored under (table, id).
func (s *Store) Get(ctx context.Context, table storage.Table, id string) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var doc []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(table, id))
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return doc, nil
}

// Put stores the document with upsert semantics.
func (s *Store) Put(ctx context.Context, table storage.Table, id string, doc []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(table, id), doc)
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", table, id, err)
	}
	return nil
}

// BulkPut stores all documents in one transaction, so the table commits
// as a unit.
func (s *Store) BulkPut(ctx context.Context, table storage.Table, docs map[string][]byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for id, doc := range docs {
			if err := txn.Set(key(table, id), doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bulk put %s (%d docs): %w", table, len(docs), err)
	}
	return nil
}

// Delete removes (table, id). Absent ids are not an error.
func (s *Store) Delete(ctx context.Context, table storage.Table, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(table, id))
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// List returns every document in the table via prefix scan.
func (s *Store) List(ctx context.Context, table storage.Table) ([][]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var docs [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(table)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			doc, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return docs, nil
}

// ListIDs returns every identifier in the table. Values are not
// fetched.
func (s *Store) ListIDs(ctx context.Context, table storage.Table) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	tablePrefix := prefix(table)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			ids = append(ids, string(k[len(tablePrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list ids %s: %w", table, err)
	}
	return ids, nil
}

// Count returns the number of documents in the table.
func (s *Store) Count(ctx context.Context, table storage.Table) (int, error) {
	ids, err := s.ListIDs(ctx, table)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Clear removes every document in the table.
func (s *Store) Clear(ctx context.Context, table storage.Table) error {
	ids, err := s.ListIDs(ctx, table)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(key(table, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// Close closes the underlying database. Safe to call once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// ready checks the context and the closed flag before an operation.
func (s *Store) ready(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}
