// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package remap resolves identifier conflicts between an incoming
// payload and entities already in storage.
//
// Three strategies:
//
//   - Skip: entities whose identifier already exists are dropped, one
//     warning per skipped entity.
//   - Replace: the payload passes through untouched; the caller clears
//     stored domain data first (the service enforces this).
//   - MergeRename (default): colliding entities receive fresh random
//     identifiers, colliding sessions additionally get their title
//     suffixed, and every foreign key is rewritten consistently.
//
// Resolution never mutates the input payload. New records are built
// field by field from the old ones, so a failed import cannot leave
// partially rewritten state visible to the caller. Generated
// identifiers are random UUIDs: a subsequent, unrelated import of the
// same source file must not collide with them.
//
// # Walk order
//
// MergeRename builds identifier maps for every referenced kind first,
// then rewrites in a fixed order: Sessions, Folders, Messages,
// Projects, KnowledgeFiles, Summaries, Documents, Workflows,
// WorkflowExecutions, AgentTraces, Checkpoints, Artifacts. Kinds with
// no foreign keys (context files, video projects, assets) only receive
// fresh identifiers; the raw storage snapshot passes through untouched.
package remap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/storage"
)

// Strategy selects how identifier collisions are resolved on import.
type Strategy string

const (
	// StrategySkip drops colliding entities.
	StrategySkip Strategy = "skip"

	// StrategyReplace keeps the payload as-is; stored domain data is
	// cleared beforehand by an explicit, separate call.
	StrategyReplace Strategy = "replace"

	// StrategyMergeRename renames colliding entities and rewrites
	// foreign keys. The default.
	StrategyMergeRename Strategy = "merge-rename"
)

// Valid reports whether the strategy is one of the known values.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySkip, StrategyReplace, StrategyMergeRename:
		return true
	}
	return false
}

// RenameSuffix marks imported sessions whose title was renamed.
const RenameSuffix = " (imported)"

// ExistingIDs holds, per table, the identifiers already present in the
// target backend.
type ExistingIDs map[storage.Table]map[string]struct{}

// Has reports whether id exists in the table.
func (e ExistingIDs) Has(table storage.Table, id string) bool {
	ids, ok := e[table]
	if !ok {
		return false
	}
	_, ok = ids[id]
	return ok
}

// Plan is the outcome of conflict resolution: a payload safe to write,
// plus warnings naming every skipped or renamed entity.
type Plan struct {
	// Payload is the resolved payload. Always a fresh value; the input
	// is never aliased.
	Payload model.Payload

	// Warnings name skipped and renamed entities, human-readable.
	Warnings []string

	// SessionIDMap maps incoming session ids to their final ids
	// (identity for non-colliding sessions). Exposed for diagnostics.
	SessionIDMap map[string]string
}

// Resolve applies the strategy to the payload against the identifiers
// already in storage.
//
// The input payload is treated as read-only. Returns an error only for
// an unknown strategy; conflicts themselves are never errors.
func Resolve(payload *model.Payload, existing ExistingIDs, strategy Strategy) (*Plan, error) {
	switch strategy {
	case StrategySkip:
		return resolveSkip(payload, existing), nil
	case StrategyReplace:
		return &Plan{Payload: clonePayload(payload), SessionIDMap: identityMap(payload)}, nil
	case StrategyMergeRename:
		return resolveMergeRename(payload, existing), nil
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
}

// --- merge-rename ---

// idMaps holds old-id to new-id mappings for every referenced kind.
type idMaps struct {
	sessions  map[string]string
	folders   map[string]string
	projects  map[string]string
	workflows map[string]string
	messages  map[string]string
}

func resolveMergeRename(payload *model.Payload, existing ExistingIDs) *Plan {
	plan := &Plan{}

	// Phase 1: build identifier maps for every referenced kind. Every
	// incoming entity gets an entry, identity when there is no
	// collision, so foreign keys can be rewritten uniformly.
	maps := idMaps{
		sessions:  buildIDMap(sessionIDs(payload.Sessions), existing, storage.TableSessions),
		folders:   buildIDMap(folderIDs(payload.Folders), existing, storage.TableFolders),
		projects:  buildIDMap(projectIDs(payload.Projects), existing, storage.TableProjects),
		workflows: buildIDMap(workflowIDs(payload.Workflows), existing, storage.TableWorkflows),
		messages:  buildIDMap(messageIDs(payload.Messages), existing, storage.TableMessages),
	}
	plan.SessionIDMap = maps.sessions

	// Phase 2: rebuild every entity with rewritten identifiers and
	// foreign keys, in the fixed walk order.
	plan.Payload.Sessions = make([]model.Session, 0, len(payload.Sessions))
	for _, session := range payload.Sessions {
		mapped := session
		mapped.ID = maps.sessions[session.ID]
		mapped.FolderID = rewriteRef(session.FolderID, maps.folders)
		mapped.ProjectID = rewriteRef(session.ProjectID, maps.projects)
		if mapped.ID != session.ID {
			mapped.Title = session.Title + RenameSuffix
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("session %q already exists; imported copy renamed to %q", session.Title, mapped.Title))
		}
		plan.Payload.Sessions = append(plan.Payload.Sessions, mapped)
	}

	plan.Payload.Folders = make([]model.Folder, 0, len(payload.Folders))
	for _, folder := range payload.Folders {
		mapped := folder
		mapped.ID = maps.folders[folder.ID]
		mapped.ParentID = rewriteRef(folder.ParentID, maps.folders)
		plan.Payload.Folders = append(plan.Payload.Folders, mapped)
	}

	plan.Payload.Messages = make([]model.Message, 0, len(payload.Messages))
	for _, message := range payload.Messages {
		mapped := cloneMessage(message)
		mapped.ID = maps.messages[message.ID]
		mapped.SessionID = rewriteRef(message.SessionID, maps.sessions)
		plan.Payload.Messages = append(plan.Payload.Messages, mapped)
	}

	plan.Payload.Projects = make([]model.Project, 0, len(payload.Projects))
	for _, project := range payload.Projects {
		mapped := project
		mapped.ID = maps.projects[project.ID]
		mapped.SessionIDs = rewriteRefList(project.SessionIDs, maps.sessions)
		plan.Payload.Projects = append(plan.Payload.Projects, mapped)
	}

	plan.Payload.KnowledgeFiles = make([]model.KnowledgeFile, 0, len(payload.KnowledgeFiles))
	for _, file := range payload.KnowledgeFiles {
		mapped := file
		mapped.ID = freshIfTaken(file.ID, existing, storage.TableKnowledgeFiles)
		mapped.ProjectID = rewriteRef(file.ProjectID, maps.projects)
		plan.Payload.KnowledgeFiles = append(plan.Payload.KnowledgeFiles, mapped)
	}

	plan.Payload.Summaries = make([]model.Summary, 0, len(payload.Summaries))
	for _, summary := range payload.Summaries {
		mapped := summary
		mapped.ID = freshIfTaken(summary.ID, existing, storage.TableSummaries)
		mapped.SessionID = rewriteRef(summary.SessionID, maps.sessions)
		plan.Payload.Summaries = append(plan.Payload.Summaries, mapped)
	}

	plan.Payload.Documents = make([]model.Document, 0, len(payload.Documents))
	for _, document := range payload.Documents {
		mapped := document
		mapped.ID = freshIfTaken(document.ID, existing, storage.TableDocuments)
		mapped.SessionID = rewriteRef(document.SessionID, maps.sessions)
		plan.Payload.Documents = append(plan.Payload.Documents, mapped)
	}

	plan.Payload.Workflows = make([]model.Workflow, 0, len(payload.Workflows))
	for _, workflow := range payload.Workflows {
		mapped := workflow
		mapped.ID = maps.workflows[workflow.ID]
		mapped.ProjectID = rewriteRef(workflow.ProjectID, maps.projects)
		mapped.Definition = cloneMap(workflow.Definition)
		plan.Payload.Workflows = append(plan.Payload.Workflows, mapped)
	}

	plan.Payload.WorkflowExecutions = make([]model.WorkflowExecution, 0, len(payload.WorkflowExecutions))
	for _, execution := range payload.WorkflowExecutions {
		mapped := execution
		mapped.ID = freshIfTaken(execution.ID, existing, storage.TableWorkflowExecutions)
		mapped.WorkflowID = rewriteRef(execution.WorkflowID, maps.workflows)
		mapped.Output = cloneMap(execution.Output)
		plan.Payload.WorkflowExecutions = append(plan.Payload.WorkflowExecutions, mapped)
	}

	plan.Payload.AgentTraces = make([]model.AgentTrace, 0, len(payload.AgentTraces))
	for _, trace := range payload.AgentTraces {
		mapped := trace
		mapped.ID = freshIfTaken(trace.ID, existing, storage.TableAgentTraces)
		mapped.SessionID = rewriteRef(trace.SessionID, maps.sessions)
		mapped.Steps = cloneMapSlice(trace.Steps)
		plan.Payload.AgentTraces = append(plan.Payload.AgentTraces, mapped)
	}

	plan.Payload.Checkpoints = make([]model.Checkpoint, 0, len(payload.Checkpoints))
	for _, checkpoint := range payload.Checkpoints {
		mapped := checkpoint
		mapped.ID = freshIfTaken(checkpoint.ID, existing, storage.TableCheckpoints)
		mapped.SessionID = rewriteRef(checkpoint.SessionID, maps.sessions)
		mapped.State = cloneMap(checkpoint.State)
		plan.Payload.Checkpoints = append(plan.Payload.Checkpoints, mapped)
	}

	if len(payload.Artifacts) > 0 {
		plan.Payload.Artifacts = make(map[string]model.Artifact, len(payload.Artifacts))
		for _, artifact := range payload.Artifacts {
			mapped := artifact
			mapped.ID = freshIfTaken(artifact.ID, existing, storage.TableArtifacts)
			mapped.SessionID = rewriteRef(artifact.SessionID, maps.sessions)
			mapped.MessageID = rewriteRef(artifact.MessageID, maps.messages)
			plan.Payload.Artifacts[mapped.ID] = mapped
		}
	}

	// Kinds with no foreign keys: fresh identifier, nothing to rewrite.
	plan.Payload.ContextFiles = make([]model.ContextFile, 0, len(payload.ContextFiles))
	for _, file := range payload.ContextFiles {
		mapped := file
		mapped.ID = uuid.NewString()
		plan.Payload.ContextFiles = append(plan.Payload.ContextFiles, mapped)
	}
	plan.Payload.VideoProjects = make([]model.VideoProject, 0, len(payload.VideoProjects))
	for _, project := range payload.VideoProjects {
		mapped := project
		mapped.ID = uuid.NewString()
		mapped.Timeline = cloneMap(project.Timeline)
		plan.Payload.VideoProjects = append(plan.Payload.VideoProjects, mapped)
	}
	plan.Payload.Assets = make([]model.Asset, 0, len(payload.Assets))
	for _, asset := range payload.Assets {
		mapped := asset
		mapped.ID = uuid.NewString()
		plan.Payload.Assets = append(plan.Payload.Assets, mapped)
	}
	plan.Payload.MCPServers = make([]model.MCPServerConfig, 0, len(payload.MCPServers))
	for _, server := range payload.MCPServers {
		mapped := server
		mapped.ID = freshIfTaken(server.ID, existing, storage.TableMCPServers)
		mapped.Args = cloneSlice(server.Args)
		mapped.Env = cloneStringMap(server.Env)
		plan.Payload.MCPServers = append(plan.Payload.MCPServers, mapped)
	}

	plan.Payload.Settings = cloneMap(payload.Settings)
	// The raw snapshot is opaque: copied, never rewritten.
	plan.Payload.StorageSnapshot = cloneMap(payload.StorageSnapshot)

	return plan
}

// buildIDMap assigns every incoming id a final id: a fresh UUID when it
// collides with storage, identity otherwise.
func buildIDMap(ids []string, existing ExistingIDs, table storage.Table) map[string]string {
	mapped := make(map[string]string, len(ids))
	for _, id := range ids {
		if existing.Has(table, id) {
			mapped[id] = uuid.NewString()
		} else {
			mapped[id] = id
		}
	}
	return mapped
}

func freshIfTaken(id string, existing ExistingIDs, table storage.Table) string {
	if existing.Has(table, id) {
		return uuid.NewString()
	}
	return id
}

// rewriteRef maps an optional foreign key through an id map. Empty
// references and references to entities outside the payload (already
// in storage) pass through unchanged.
func rewriteRef(ref string, ids map[string]string) string {
	if ref == "" {
		return ""
	}
	if mapped, ok := ids[ref]; ok {
		return mapped
	}
	return ref
}

func rewriteRefList(refs []string, ids map[string]string) []string {
	if refs == nil {
		return nil
	}
	mapped := make([]string, len(refs))
	for i, ref := range refs {
		mapped[i] = rewriteRef(ref, ids)
	}
	return mapped
}
