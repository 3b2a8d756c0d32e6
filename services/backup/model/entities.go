// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// Session is one conversation. Message/Summary rows reference it by id;
// MessageCount and Preview are cached denormalizations, never
// authoritative.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	FolderID     string    `json:"folderId,omitempty"`
	ProjectID    string    `json:"projectId,omitempty"`
	MessageCount int       `json:"messageCount,omitempty"`
	Preview      string    `json:"preview,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Message belongs to exactly one Session. Parts carries optional
// structured content blocks (tool calls, reasoning traces) as opaque
// JSON objects.
type Message struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"sessionId"`
	BranchID     string           `json:"branchId,omitempty"`
	Role         string           `json:"role"`
	Content      string           `json:"content"`
	Parts        []map[string]any `json:"parts,omitempty"`
	InputTokens  int              `json:"inputTokens,omitempty"`
	OutputTokens int              `json:"outputTokens,omitempty"`
	Attachments  []Attachment     `json:"attachments,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Project groups sessions by id list and owns knowledge files.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SessionIDs  []string  `json:"sessionIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// KnowledgeFile belongs to exactly one Project.
type KnowledgeFile struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType,omitempty"`
	Content   string    `json:"content,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is derived, cached content for one Session. It is never
// authoritative and can be regenerated.
type Summary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Artifact is a generated output (code block, diagram, document).
// Both references are optional because artifacts outlive the session
// or message that produced them.
type Artifact struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Folder organizes sessions in the sidebar tree.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a standalone rich-text document, optionally tied to the
// session it was drafted in.
type Document struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Workflow is a saved automation definition.
type Workflow struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ProjectID  string         `json:"projectId,omitempty"`
	Definition map[string]any `json:"definition,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// WorkflowExecution is one run of a Workflow.
type WorkflowExecution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	Status      string         `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// AgentTrace records the tool/step trail of an agent run, optionally
// tied to the session it ran in.
type AgentTrace struct {
	ID        string           `json:"id"`
	SessionID string           `json:"sessionId,omitempty"`
	Steps     []map[string]any `json:"steps,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Checkpoint is a restorable snapshot of one session's state.
type Checkpoint struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Label     string         `json:"label,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ContextFile is a free-standing attached context source. No foreign
// keys; the remapper only refreshes its identifier.
type ContextFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VideoProject is a free-standing media project. No foreign keys.
type VideoProject struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timeline  map[string]any `json:"timeline,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Asset is a free-standing binary asset (base64 data or URL). No
// foreign keys.
type Asset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType,omitempty"`
	Data      string    `json:"data,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MCPServerConfig is an external-tool server configuration.
// Free-standing; the remapper only refreshes its identifier.
type MCPServerConfig struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool              `json:"enabled"`
}

// Payload is the full set of domain entity collections moved by one
// export/import call.
//
// Settings is a flat key/value bag with no identifier of its own.
// Artifacts are keyed by artifact id. StorageSnapshot holds raw
// key/value pairs captured from ephemeral storage; it is treated as an
// opaque dictionary and is exempt from referential-integrity
// guarantees.
type Payload struct {
	Sessions           []Session           `json:"sessions"`
	Messages           []Message           `json:"messages"`
	Projects           []Project           `json:"projects"`
	KnowledgeFiles     []KnowledgeFile     `json:"knowledgeFiles"`
	Summaries          []Summary           `json:"summaries"`
	Folders            []Folder            `json:"folders,omitempty"`
	Documents          []Document          `json:"documents,omitempty"`
	Workflows          []Workflow          `json:"workflows,omitempty"`
	WorkflowExecutions []WorkflowExecution `json:"workflowExecutions,omitempty"`
	AgentTraces        []AgentTrace        `json:"agentTraces,omitempty"`
	Checkpoints        []Checkpoint        `json:"checkpoints,omitempty"`
	ContextFiles       []ContextFile       `json:"contextFiles,omitempty"`
	VideoProjects      []VideoProject      `json:"videoProjects,omitempty"`
	Assets             []Asset             `json:"assets,omitempty"`
	MCPServers         []MCPServerConfig   `json:"mcpServers,omitempty"`
	Artifacts          map[string]Artifact `json:"artifacts,omitempty"`
	Settings           map[string]any      `json:"settings,omitempty"`
	StorageSnapshot    map[string]any      `json:"storageSnapshot,omitempty"`
}
