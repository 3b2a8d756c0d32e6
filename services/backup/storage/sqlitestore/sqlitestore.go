// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlitestore implements the relational backend on SQLite.
//
// It plays the role of the native desktop store. Entities are stored
// whole in a payload_json column; hot filter columns (session_id,
// project_id, timestamps) are extracted on write so paging and cascade
// deletes stay in SQL. The driver is modernc.org/sqlite, a pure-Go
// translation, so the binary stays cgo-free like the rest of the
// module.
//
// Bulk writes for one table run inside one transaction, so each table
// commits as a unit. Cross-table atomicity is not provided.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/cognia/services/backup/storage"
)

// Store implements storage.Backend on SQLite.
//
// Thread Safety: safe for concurrent use. A single connection is kept
// open (SQLite handles one writer at a time); database/sql serializes
// access.
type Store struct {
	db *sql.DB
}

var _ storage.Backend = (*Store)(nil)

// Open creates or opens the database at path and initializes the
// schema. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	return open(dsn)
}

// OpenInMemory opens an in-memory database for testing.
func OpenInMemory() (*Store, error) {
	return open("file::memory:?_pragma=foreign_keys(1)")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Kind reports the relational backend identity.
func (s *Store) Kind() storage.Kind {
	return storage.KindRelational
}

// Get returns the document stored under (table, id).
func (s *Store) Get(ctx context.Context, table storage.Table, id string) ([]byte, error) {
	query := fmt.Sprintf("SELECT payload_json FROM %s WHERE id = ?", table)
	var doc []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return doc, nil
}

// Put stores the document with upsert semantics.
func (s *Store) Put(ctx context.Context, table storage.Table, id string, doc []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put %s: %w", table, err)
	}
	defer tx.Rollback()

	if err := upsert(ctx, tx, table, id, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put %s/%s: %w", table, id, err)
	}
	return nil
}

// BulkPut stores all documents in one transaction, so the table commits
// as a unit.
func (s *Store) BulkPut(ctx context.Context, table storage.Table, docs map[string][]byte) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk put %s: %w", table, err)
	}
	defer tx.Rollback()

	for id, doc := range docs {
		if err := upsert(ctx, tx, table, id, doc); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk put %s (%d docs): %w", table, len(docs), err)
	}
	return nil
}

// Delete removes (table, id). Absent ids are not an error.
func (s *Store) Delete(ctx context.Context, table storage.Table, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// List returns every document in the table. Tables with timestamp
// columns come back newest-updated first, matching the listing order
// the desktop UI uses.
func (s *Store) List(ctx context.Context, table storage.Table) ([][]byte, error) {
	query := fmt.Sprintf("SELECT payload_json FROM %s", table)
	switch table {
	case storage.TableSessions, storage.TableProjects, storage.TableKnowledgeFiles, storage.TableSummaries:
		query += " ORDER BY updated_at DESC, created_at DESC"
	case storage.TableMessages:
		query += " ORDER BY created_at ASC"
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return docs, nil
}

// ListIDs returns every identifier in the table.
func (s *Store) ListIDs(ctx context.Context, table storage.Table) ([]string, error) {
	query := fmt.Sprintf("SELECT id FROM %s", table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ids %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", table, err)
	}
	return ids, nil
}

// Count returns the number of documents in the table.
func (s *Store) Count(ctx context.Context, table storage.Table) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// Clear removes every document in the table.
func (s *Store) Clear(ctx context.Context, table storage.Table) error {
	query := fmt.Sprintf("DELETE FROM %s", table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// upsert writes one row, extracting index columns for the core tables.
// Every entity table is covered by the switch; adding a Table constant
// without a case here falls through to the generic two-column shape.
func upsert(ctx context.Context, tx *sql.Tx, table storage.Table, id string, doc []byte) error {
	fields := probeFields(doc)

	var err error
	switch table {
	case storage.TableSessions:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, payload_json, project_id, folder_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			  payload_json=excluded.payload_json,
			  project_id=excluded.project_id,
			  folder_id=excluded.folder_id,
			  created_at=excluded.created_at,
			  updated_at=excluded.updated_at`,
			id, doc, nullable(fields.ProjectID), nullable(fields.FolderID),
			orNow(fields.CreatedAt), orNow(fields.UpdatedAt))

	case storage.TableMessages:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, branch_id, created_at, payload_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			  session_id=excluded.session_id,
			  branch_id=excluded.branch_id,
			  created_at=excluded.created_at,
			  payload_json=excluded.payload_json`,
			id, fields.SessionID, nullable(fields.BranchID), orNow(fields.CreatedAt), doc)

	case storage.TableProjects:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (id, payload_json, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			  payload_json=excluded.payload_json,
			  created_at=excluded.created_at,
			  updated_at=excluded.updated_at`,
			id, doc, orNow(fields.CreatedAt), orNow(fields.UpdatedAt))

	case storage.TableKnowledgeFiles:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_files (id, project_id, payload_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			  project_id=excluded.project_id,
			  payload_json=excluded.payload_json,
			  created_at=excluded.created_at,
			  updated_at=excluded.updated_at`,
			id, fields.ProjectID, doc, orNow(fields.CreatedAt), orNow(fields.UpdatedAt))

	case storage.TableSummaries:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO summaries (id, session_id, summary_type, created_at, updated_at, payload_json)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			  session_id=excluded.session_id,
			  summary_type=excluded.summary_type,
			  created_at=excluded.created_at,
			  updated_at=excluded.updated_at,
			  payload_json=excluded.payload_json`,
			id, fields.SessionID, nullable(fields.Type), orNow(fields.CreatedAt), orNow(fields.UpdatedAt), doc)

	default:
		query := fmt.Sprintf(`
			INSERT INTO %s (id, payload_json) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET payload_json=excluded.payload_json`, table)
		_, err = tx.ExecContext(ctx, query, id, doc)
	}

	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	return nil
}

// indexFields are the columns extracted from a document on write.
type indexFields struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId"`
	FolderID  string `json:"folderId"`
	BranchID  string `json:"branchId"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func probeFields(doc []byte) indexFields {
	var fields indexFields
	// Best effort: a document that fails the probe still stores whole.
	_ = json.Unmarshal(doc, &fields)
	return fields
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func orNow(value string) string {
	if value == "" {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return value
}
