// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remap

import (
	"fmt"

	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/storage"
)

// resolveSkip drops every entity whose identifier already exists in
// storage, with one warning per skipped entity. Identifiers are never
// rewritten; entities that survive keep their foreign keys, which
// resolve either inside the payload or against what is already stored.
func resolveSkip(payload *model.Payload, existing ExistingIDs) *Plan {
	// Filter a deep copy so the plan never aliases the caller's data.
	copied := clonePayload(payload)
	payload = &copied

	plan := &Plan{SessionIDMap: map[string]string{}}

	plan.Payload.Sessions = make([]model.Session, 0, len(payload.Sessions))
	for _, session := range payload.Sessions {
		if existing.Has(storage.TableSessions, session.ID) {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("skipped session %q: identifier already exists", session.Title))
			continue
		}
		plan.SessionIDMap[session.ID] = session.ID
		plan.Payload.Sessions = append(plan.Payload.Sessions, session)
	}

	plan.Payload.Messages = make([]model.Message, 0, len(payload.Messages))
	for _, message := range payload.Messages {
		if existing.Has(storage.TableMessages, message.ID) {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("skipped message %s: identifier already exists", message.ID))
			continue
		}
		plan.Payload.Messages = append(plan.Payload.Messages, cloneMessage(message))
	}

	plan.Payload.Projects = make([]model.Project, 0, len(payload.Projects))
	for _, project := range payload.Projects {
		if existing.Has(storage.TableProjects, project.ID) {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("skipped project %q: identifier already exists", project.Name))
			continue
		}
		mapped := project
		mapped.SessionIDs = cloneSlice(project.SessionIDs)
		plan.Payload.Projects = append(plan.Payload.Projects, mapped)
	}

	plan.Payload.KnowledgeFiles = filterSkipped(payload.KnowledgeFiles, existing, storage.TableKnowledgeFiles,
		func(f model.KnowledgeFile) string { return f.ID }, "knowledge file", &plan.Warnings)
	plan.Payload.Summaries = filterSkipped(payload.Summaries, existing, storage.TableSummaries,
		func(s model.Summary) string { return s.ID }, "summary", &plan.Warnings)
	plan.Payload.Folders = filterSkipped(payload.Folders, existing, storage.TableFolders,
		func(f model.Folder) string { return f.ID }, "folder", &plan.Warnings)
	plan.Payload.Documents = filterSkipped(payload.Documents, existing, storage.TableDocuments,
		func(d model.Document) string { return d.ID }, "document", &plan.Warnings)
	plan.Payload.Workflows = filterSkipped(payload.Workflows, existing, storage.TableWorkflows,
		func(w model.Workflow) string { return w.ID }, "workflow", &plan.Warnings)
	plan.Payload.WorkflowExecutions = filterSkipped(payload.WorkflowExecutions, existing, storage.TableWorkflowExecutions,
		func(e model.WorkflowExecution) string { return e.ID }, "workflow execution", &plan.Warnings)
	plan.Payload.AgentTraces = filterSkipped(payload.AgentTraces, existing, storage.TableAgentTraces,
		func(t model.AgentTrace) string { return t.ID }, "agent trace", &plan.Warnings)
	plan.Payload.Checkpoints = filterSkipped(payload.Checkpoints, existing, storage.TableCheckpoints,
		func(c model.Checkpoint) string { return c.ID }, "checkpoint", &plan.Warnings)
	plan.Payload.ContextFiles = filterSkipped(payload.ContextFiles, existing, storage.TableContextFiles,
		func(f model.ContextFile) string { return f.ID }, "context file", &plan.Warnings)
	plan.Payload.VideoProjects = filterSkipped(payload.VideoProjects, existing, storage.TableVideoProjects,
		func(p model.VideoProject) string { return p.ID }, "video project", &plan.Warnings)
	plan.Payload.Assets = filterSkipped(payload.Assets, existing, storage.TableAssets,
		func(a model.Asset) string { return a.ID }, "asset", &plan.Warnings)
	plan.Payload.MCPServers = filterSkipped(payload.MCPServers, existing, storage.TableMCPServers,
		func(s model.MCPServerConfig) string { return s.ID }, "mcp server", &plan.Warnings)

	if len(payload.Artifacts) > 0 {
		plan.Payload.Artifacts = make(map[string]model.Artifact, len(payload.Artifacts))
		for id, artifact := range payload.Artifacts {
			if existing.Has(storage.TableArtifacts, artifact.ID) {
				plan.Warnings = append(plan.Warnings,
					fmt.Sprintf("skipped artifact %s: identifier already exists", artifact.ID))
				continue
			}
			plan.Payload.Artifacts[id] = artifact
		}
	}

	plan.Payload.Settings = cloneMap(payload.Settings)
	plan.Payload.StorageSnapshot = cloneMap(payload.StorageSnapshot)
	return plan
}

// filterSkipped keeps entities whose id is not yet stored, appending a
// warning for each one dropped.
func filterSkipped[E any](entities []E, existing ExistingIDs, table storage.Table, id func(E) string, kind string, warnings *[]string) []E {
	kept := make([]E, 0, len(entities))
	for _, entity := range entities {
		if existing.Has(table, id(entity)) {
			*warnings = append(*warnings,
				fmt.Sprintf("skipped %s %s: identifier already exists", kind, id(entity)))
			continue
		}
		kept = append(kept, entity)
	}
	return kept
}
