// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlitestore

import (
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is recorded in the meta table on every open.
const schemaVersion = 1

// initSchema creates all tables. Core entity tables extract foreign-key
// and timestamp columns for indexing; the full entity always lives in
// payload_json. Auxiliary tables store the payload only.
func initSchema(db *sql.DB) error {
	const ddl = `
	PRAGMA foreign_keys=ON;

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		payload_json TEXT NOT NULL,
		project_id TEXT,
		folder_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		branch_id TEXT,
		created_at TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS knowledge_files (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		summary_type TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS folders (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS documents (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS workflows (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS workflow_executions (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS agent_traces (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS checkpoints (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS artifacts (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS context_files (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS video_projects (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS assets (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS mcp_servers (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS settings (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);
	CREATE TABLE IF NOT EXISTS snapshot (id TEXT PRIMARY KEY, payload_json TEXT NOT NULL);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages(session_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_branch_created ON messages(session_id, branch_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_projects_updated_at ON projects(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_knowledge_files_project ON knowledge_files(project_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_summaries_session_created ON summaries(session_id, created_at DESC);
	`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES ('schema_version', ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		fmt.Sprintf("%d", schemaVersion),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}
