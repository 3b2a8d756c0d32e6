// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/AleutianAI/cognia/services/backup/envelope"
	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/storage"
)

// Selection names the data categories included in an export. Excluded
// categories still appear in the payload as empty collections so the
// document shape stays uniform.
type Selection struct {
	// Sessions includes the session records themselves.
	Sessions bool
	// Settings includes application settings and the storage snapshot.
	Settings bool
	// Artifacts includes the artifact dictionary.
	Artifacts bool
	// Auxiliary includes everything owned by or related to sessions
	// and projects: messages, projects, knowledge files, summaries,
	// folders, documents, workflows, traces, and the rest.
	Auxiliary bool
}

// FullSelection selects every category.
func FullSelection() Selection {
	return Selection{Sessions: true, Settings: true, Artifacts: true, Auxiliary: true}
}

// Any reports whether at least one category is selected.
func (sel Selection) Any() bool {
	return sel.Sessions || sel.Settings || sel.Artifacts || sel.Auxiliary
}

// ExportPayload assembles a payload from the selected categories.
//
// Description:
//
//	Reads the selected collections from the primary backend. The
//	result always carries every collection; unselected ones are
//	present but empty.
//
// Inputs:
//
//	sel - categories to include.
//
// Outputs:
//
//	*model.Payload - assembled payload, never nil on success.
func (s *Service) ExportPayload(ctx context.Context, sel Selection) (*model.Payload, error) {
	if err := s.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	p := emptyPayload()

	var err error
	if sel.Sessions {
		if p.Sessions, err = listAs[model.Session](ctx, s, storage.TableSessions); err != nil {
			return nil, err
		}
	}
	if sel.Auxiliary {
		if p.Messages, err = listAs[model.Message](ctx, s, storage.TableMessages); err != nil {
			return nil, err
		}
		if p.Projects, err = listAs[model.Project](ctx, s, storage.TableProjects); err != nil {
			return nil, err
		}
		if p.KnowledgeFiles, err = listAs[model.KnowledgeFile](ctx, s, storage.TableKnowledgeFiles); err != nil {
			return nil, err
		}
		if p.Summaries, err = listAs[model.Summary](ctx, s, storage.TableSummaries); err != nil {
			return nil, err
		}
		if p.Folders, err = listAs[model.Folder](ctx, s, storage.TableFolders); err != nil {
			return nil, err
		}
		if p.Documents, err = listAs[model.Document](ctx, s, storage.TableDocuments); err != nil {
			return nil, err
		}
		if p.Workflows, err = listAs[model.Workflow](ctx, s, storage.TableWorkflows); err != nil {
			return nil, err
		}
		if p.WorkflowExecutions, err = listAs[model.WorkflowExecution](ctx, s, storage.TableWorkflowExecutions); err != nil {
			return nil, err
		}
		if p.AgentTraces, err = listAs[model.AgentTrace](ctx, s, storage.TableAgentTraces); err != nil {
			return nil, err
		}
		if p.Checkpoints, err = listAs[model.Checkpoint](ctx, s, storage.TableCheckpoints); err != nil {
			return nil, err
		}
		if p.ContextFiles, err = listAs[model.ContextFile](ctx, s, storage.TableContextFiles); err != nil {
			return nil, err
		}
		if p.VideoProjects, err = listAs[model.VideoProject](ctx, s, storage.TableVideoProjects); err != nil {
			return nil, err
		}
		if p.Assets, err = listAs[model.Asset](ctx, s, storage.TableAssets); err != nil {
			return nil, err
		}
		if p.MCPServers, err = listAs[model.MCPServerConfig](ctx, s, storage.TableMCPServers); err != nil {
			return nil, err
		}
	}
	if sel.Artifacts {
		keys, err := s.primary.ListIDs(ctx, storage.TableArtifacts)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			var a model.Artifact
			if err := s.getAs(ctx, storage.TableArtifacts, key, &a); err != nil {
				return nil, err
			}
			p.Artifacts[key] = a
		}
	}
	if sel.Settings {
		if p.Settings, err = s.readKeyed(ctx, storage.TableSettings); err != nil {
			return nil, err
		}
		if p.StorageSnapshot, err = s.readKeyed(ctx, storage.TableSnapshot); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ExportPackage wraps an exported payload in a versioned package with
// a fresh manifest and payload checksum.
func (s *Service) ExportPackage(ctx context.Context, sel Selection) (*model.BackupPackage, error) {
	payload, err := s.ExportPayload(ctx, sel)
	if err != nil {
		return nil, err
	}
	canonical, err := model.CanonicalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	backend := model.Backend(s.primary.Kind())
	pkg := &model.BackupPackage{
		Version: model.PackageVersion,
		Manifest: model.Manifest{
			Version:       model.PackageVersion,
			SchemaVersion: model.SchemaVersion,
			TraceID:       uuid.NewString(),
			ExportedAt:    time.Now().UTC(),
			Backend:       backend,
			Integrity: &model.Integrity{
				Algorithm: model.ChecksumAlgorithm,
				Checksum:  envelope.Checksum(canonical),
			},
		},
		Payload: *payload,
	}
	return pkg, nil
}

// ExportEncrypted exports the selected categories and seals the
// package with the given passphrase.
//
// Description:
//
//	Builds a package, serializes it, and produces an encrypted
//	envelope whose manifest mirrors the package manifest minus the
//	integrity block. The plaintext checksum travels in the envelope.
//
// Inputs:
//
//	sel        - categories to include.
//	passphrase - sealed passphrase; the caller keeps ownership.
//
// Outputs:
//
//	*model.EncryptedEnvelope - envelope safe to persist as JSON.
func (s *Service) ExportEncrypted(ctx context.Context, sel Selection, passphrase *memguard.Enclave) (*model.EncryptedEnvelope, error) {
	pkg, err := s.ExportPackage(ctx, sel)
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("encode package: %w", err)
	}
	return envelope.Seal(plaintext, passphrase, pkg.Manifest)
}

func emptyPayload() *model.Payload {
	return &model.Payload{
		Sessions:           []model.Session{},
		Messages:           []model.Message{},
		Projects:           []model.Project{},
		KnowledgeFiles:     []model.KnowledgeFile{},
		Summaries:          []model.Summary{},
		Folders:            []model.Folder{},
		Documents:          []model.Document{},
		Workflows:          []model.Workflow{},
		WorkflowExecutions: []model.WorkflowExecution{},
		AgentTraces:        []model.AgentTrace{},
		Checkpoints:        []model.Checkpoint{},
		ContextFiles:       []model.ContextFile{},
		VideoProjects:      []model.VideoProject{},
		Assets:             []model.Asset{},
		MCPServers:         []model.MCPServerConfig{},
		Artifacts:          map[string]model.Artifact{},
		Settings:           map[string]any{},
		StorageSnapshot:    map[string]any{},
	}
}
