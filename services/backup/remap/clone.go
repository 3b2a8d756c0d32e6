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

import "github.com/AleutianAI/cognia/services/backup/model"

// Deep-copy helpers. Entity structs copy by value; only their nested
// slices and maps need explicit cloning so no resolved payload ever
// aliases the caller's data.

func cloneMessage(message model.Message) model.Message {
	cloned := message
	cloned.Parts = cloneMapSlice(message.Parts)
	if message.Attachments != nil {
		cloned.Attachments = make([]model.Attachment, len(message.Attachments))
		copy(cloned.Attachments, message.Attachments)
	}
	return cloned
}

func clonePayload(payload *model.Payload) model.Payload {
	cloned := model.Payload{
		Sessions:       append([]model.Session(nil), payload.Sessions...),
		Projects:       make([]model.Project, 0, len(payload.Projects)),
		KnowledgeFiles: append([]model.KnowledgeFile(nil), payload.KnowledgeFiles...),
		Summaries:      append([]model.Summary(nil), payload.Summaries...),
		Folders:        append([]model.Folder(nil), payload.Folders...),
		Documents:      append([]model.Document(nil), payload.Documents...),
	}
	cloned.Messages = make([]model.Message, 0, len(payload.Messages))
	for _, message := range payload.Messages {
		cloned.Messages = append(cloned.Messages, cloneMessage(message))
	}
	for _, project := range payload.Projects {
		mapped := project
		mapped.SessionIDs = cloneSlice(project.SessionIDs)
		cloned.Projects = append(cloned.Projects, mapped)
	}
	cloned.Workflows = make([]model.Workflow, 0, len(payload.Workflows))
	for _, workflow := range payload.Workflows {
		mapped := workflow
		mapped.Definition = cloneMap(workflow.Definition)
		cloned.Workflows = append(cloned.Workflows, mapped)
	}
	cloned.WorkflowExecutions = make([]model.WorkflowExecution, 0, len(payload.WorkflowExecutions))
	for _, execution := range payload.WorkflowExecutions {
		mapped := execution
		mapped.Output = cloneMap(execution.Output)
		cloned.WorkflowExecutions = append(cloned.WorkflowExecutions, mapped)
	}
	cloned.AgentTraces = make([]model.AgentTrace, 0, len(payload.AgentTraces))
	for _, trace := range payload.AgentTraces {
		mapped := trace
		mapped.Steps = cloneMapSlice(trace.Steps)
		cloned.AgentTraces = append(cloned.AgentTraces, mapped)
	}
	cloned.Checkpoints = make([]model.Checkpoint, 0, len(payload.Checkpoints))
	for _, checkpoint := range payload.Checkpoints {
		mapped := checkpoint
		mapped.State = cloneMap(checkpoint.State)
		cloned.Checkpoints = append(cloned.Checkpoints, mapped)
	}
	cloned.ContextFiles = append([]model.ContextFile(nil), payload.ContextFiles...)
	cloned.VideoProjects = make([]model.VideoProject, 0, len(payload.VideoProjects))
	for _, project := range payload.VideoProjects {
		mapped := project
		mapped.Timeline = cloneMap(project.Timeline)
		cloned.VideoProjects = append(cloned.VideoProjects, mapped)
	}
	cloned.Assets = append([]model.Asset(nil), payload.Assets...)
	cloned.MCPServers = make([]model.MCPServerConfig, 0, len(payload.MCPServers))
	for _, server := range payload.MCPServers {
		mapped := server
		mapped.Args = cloneSlice(server.Args)
		mapped.Env = cloneStringMap(server.Env)
		cloned.MCPServers = append(cloned.MCPServers, mapped)
	}
	if payload.Artifacts != nil {
		cloned.Artifacts = make(map[string]model.Artifact, len(payload.Artifacts))
		for id, artifact := range payload.Artifacts {
			cloned.Artifacts[id] = artifact
		}
	}
	cloned.Settings = cloneMap(payload.Settings)
	cloned.StorageSnapshot = cloneMap(payload.StorageSnapshot)
	return cloned
}

func identityMap(payload *model.Payload) map[string]string {
	ids := make(map[string]string, len(payload.Sessions))
	for _, session := range payload.Sessions {
		ids[session.ID] = session.ID
	}
	return ids
}

// cloneMap deep-copies a JSON-shaped map.
func cloneMap(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}
	cloned := make(map[string]any, len(source))
	for key, value := range source {
		cloned[key] = cloneValue(value)
	}
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		cloned := make([]any, len(typed))
		for i, element := range typed {
			cloned[i] = cloneValue(element)
		}
		return cloned
	default:
		return value
	}
}

func cloneMapSlice(source []map[string]any) []map[string]any {
	if source == nil {
		return nil
	}
	cloned := make([]map[string]any, len(source))
	for i, element := range source {
		cloned[i] = cloneMap(element)
	}
	return cloned
}

func cloneSlice(source []string) []string {
	if source == nil {
		return nil
	}
	cloned := make([]string, len(source))
	copy(cloned, source)
	return cloned
}

func cloneStringMap(source map[string]string) map[string]string {
	if source == nil {
		return nil
	}
	cloned := make(map[string]string, len(source))
	for key, value := range source {
		cloned[key] = value
	}
	return cloned
}

// sessionIDs and friends collect the ids of one entity kind.

func sessionIDs(sessions []model.Session) []string {
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	return ids
}

func folderIDs(folders []model.Folder) []string {
	ids := make([]string, len(folders))
	for i, folder := range folders {
		ids[i] = folder.ID
	}
	return ids
}

func projectIDs(projects []model.Project) []string {
	ids := make([]string, len(projects))
	for i, project := range projects {
		ids[i] = project.ID
	}
	return ids
}

func workflowIDs(workflows []model.Workflow) []string {
	ids := make([]string, len(workflows))
	for i, workflow := range workflows {
		ids[i] = workflow.ID
	}
	return ids
}

func messageIDs(messages []model.Message) []string {
	ids := make([]string, len(messages))
	for i, message := range messages {
		ids[i] = message.ID
	}
	return ids
}
