// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the narrow adapter interface shared by the
// document backend and the relational backend.
//
// Both backends are opaque table primitives: JSON documents keyed by
// table and id, with get/put/delete/list/bulk operations. The
// orchestration layer never branches on backend identity except to
// decide whether mirroring is needed; everything else goes through this
// interface.
//
// Tables are a fixed enumeration, not a dynamic name list. Adding an
// entity kind means extending the enum, which makes every switch over
// tables a compile-surface checklist.
package storage

import "context"

// Table identifies one entity table.
type Table int

const (
	TableSessions Table = iota
	TableMessages
	TableProjects
	TableKnowledgeFiles
	TableSummaries
	TableFolders
	TableDocuments
	TableWorkflows
	TableWorkflowExecutions
	TableAgentTraces
	TableCheckpoints
	TableArtifacts
	TableContextFiles
	TableVideoProjects
	TableAssets
	TableMCPServers

	// TableSettings holds the flat settings bag: one row per setting
	// key, the JSON-encoded value as document.
	TableSettings

	// TableSnapshot holds raw storage snapshot pairs. Opaque; exempt
	// from referential-integrity guarantees.
	TableSnapshot
)

// tableNames indexes Table constants. Order must match the enum.
var tableNames = [...]string{
	"sessions",
	"messages",
	"projects",
	"knowledge_files",
	"summaries",
	"folders",
	"documents",
	"workflows",
	"workflow_executions",
	"agent_traces",
	"checkpoints",
	"artifacts",
	"context_files",
	"video_projects",
	"assets",
	"mcp_servers",
	"settings",
	"snapshot",
}

// String returns the table's storage name.
func (t Table) String() string {
	if int(t) < 0 || int(t) >= len(tableNames) {
		return "unknown"
	}
	return tableNames[t]
}

// AllTables returns every table in declaration order.
func AllTables() []Table {
	tables := make([]Table, len(tableNames))
	for i := range tableNames {
		tables[i] = Table(i)
	}
	return tables
}

// EntityTables returns the tables holding identified domain entities,
// excluding the settings bag and the raw snapshot.
func EntityTables() []Table {
	return []Table{
		TableSessions,
		TableMessages,
		TableProjects,
		TableKnowledgeFiles,
		TableSummaries,
		TableFolders,
		TableDocuments,
		TableWorkflows,
		TableWorkflowExecutions,
		TableAgentTraces,
		TableCheckpoints,
		TableArtifacts,
		TableContextFiles,
		TableVideoProjects,
		TableAssets,
		TableMCPServers,
	}
}

// ClearOrder returns entity tables child-first, so clearing never
// violates a foreign-key constraint in the relational backend.
func ClearOrder() []Table {
	return []Table{
		TableMessages,
		TableSummaries,
		TableCheckpoints,
		TableAgentTraces,
		TableKnowledgeFiles,
		TableWorkflowExecutions,
		TableArtifacts,
		TableDocuments,
		TableSessions,
		TableWorkflows,
		TableProjects,
		TableFolders,
		TableContextFiles,
		TableVideoProjects,
		TableAssets,
		TableMCPServers,
	}
}

// WriteOrder returns entity tables parent-first, the order bulk import
// writes them.
func WriteOrder() []Table {
	return []Table{
		TableFolders,
		TableProjects,
		TableSessions,
		TableMessages,
		TableKnowledgeFiles,
		TableSummaries,
		TableDocuments,
		TableWorkflows,
		TableWorkflowExecutions,
		TableAgentTraces,
		TableCheckpoints,
		TableArtifacts,
		TableContextFiles,
		TableVideoProjects,
		TableAssets,
		TableMCPServers,
	}
}

// Backend is the narrow adapter both stores implement.
//
// Documents are JSON-encoded entities. Bulk writes for one table are
// atomic as a unit: all rows commit together or none do. Cross-table
// atomicity is neither guaranteed nor required.
type Backend interface {
	// Kind reports which backend this is, for manifests and mirroring
	// decisions only.
	Kind() Kind

	// Get returns the document stored under (table, id).
	// Returns ErrNotFound if absent.
	Get(ctx context.Context, table Table, id string) ([]byte, error)

	// Put stores the document under (table, id) with upsert semantics.
	Put(ctx context.Context, table Table, id string, doc []byte) error

	// BulkPut stores all documents in one atomic unit.
	BulkPut(ctx context.Context, table Table, docs map[string][]byte) error

	// Delete removes (table, id). Deleting an absent id is not an error.
	Delete(ctx context.Context, table Table, id string) error

	// List returns every document in the table.
	List(ctx context.Context, table Table) ([][]byte, error)

	// ListIDs returns every identifier present in the table.
	ListIDs(ctx context.Context, table Table) ([]string, error)

	// Count returns the number of documents in the table.
	Count(ctx context.Context, table Table) (int, error)

	// Clear removes every document in the table.
	Clear(ctx context.Context, table Table) error

	// Close releases the underlying store.
	Close() error
}

// Kind mirrors the manifest backend enumeration without importing the
// model package (the model must stay dependency-free).
type Kind string

const (
	// KindDocument is the browser-style document store.
	KindDocument Kind = "web-dexie"

	// KindRelational is the native relational store.
	KindRelational Kind = "desktop-sqlite"
)
