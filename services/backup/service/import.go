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

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/cognia/services/backup/envelope"
	"github.com/AleutianAI/cognia/services/backup/legacy"
	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/remap"
	"github.com/AleutianAI/cognia/services/backup/schema"
	"github.com/AleutianAI/cognia/services/backup/storage"
)

// ImportOptions controls an import run.
type ImportOptions struct {
	// Strategy picks the collision policy. Defaults to merge-rename.
	Strategy remap.Strategy
	// Passphrase unseals encrypted inputs. Ignored for plaintext.
	Passphrase *memguard.Enclave
}

// Import ingests a backup document of any supported format.
//
// Description:
//
//	Runs the full pipeline: format detection, optional decryption,
//	legacy normalization, structural validation, checksum
//	verification, identifier remapping, and backend writes. Writes
//	land on the primary in parent-first table order; per-table write
//	failures are collected into the result rather than aborting the
//	run, so one bad table does not discard the rest of the backup.
//
// Inputs:
//
//	raw  - serialized backup: v3 package, encrypted envelope, or a
//	       legacy pre-v3 export.
//	opts - strategy and optional passphrase.
//
// Outputs:
//
//	*model.ImportResult - counts, warnings, and collected write
//	                      failures. Nil only when error is non-nil.
//	error               - pipeline failures that invalidate the whole
//	                      input: unknown format, validation, integrity,
//	                      or decryption errors.
func (s *Service) Import(ctx context.Context, raw []byte, opts ImportOptions) (*model.ImportResult, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = remap.StrategyMergeRename
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown import strategy %q", strategy)
	}

	doc, err := s.decodeDocument(raw, opts.Passphrase)
	if err != nil {
		return nil, err
	}
	if err := schema.PackageV3().Check(doc); err != nil {
		return nil, err
	}
	if err := verifyPackageChecksum(doc); err != nil {
		return nil, err
	}

	var pkg model.BackupPackage
	reencoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("reencode document: %w", err)
	}
	if err := json.Unmarshal(reencoded, &pkg); err != nil {
		return nil, fmt.Errorf("decode package: %w", err)
	}
	return s.ImportPayload(ctx, &pkg.Payload, strategy)
}

// decodeDocument peels the input down to a v3 package document,
// decrypting and normalizing as needed.
func (s *Service) decodeDocument(raw []byte, passphrase *memguard.Enclave) (map[string]any, error) {
	format, err := model.DetectFormat(raw)
	if err != nil {
		return nil, err
	}
	if format == model.FormatEncryptedV1 {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		var envDoc map[string]any
		if err := json.Unmarshal(raw, &envDoc); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		if err := schema.EncryptedEnvelopeV1().Check(envDoc); err != nil {
			return nil, err
		}
		var env model.EncryptedEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		plaintext, err := envelope.Open(&env, passphrase)
		if err != nil {
			return nil, err
		}
		raw = plaintext
		if format, err = model.DetectFormat(raw); err != nil {
			return nil, err
		}
		if format == model.FormatEncryptedV1 {
			return nil, ErrNestedEnvelope
		}
	}

	switch format {
	case model.FormatPackageV3:
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode package: %w", err)
		}
		return doc, nil
	case model.FormatLegacy:
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode legacy export: %w", err)
		}
		s.log.Info("normalizing legacy backup")
		return legacy.Normalize(doc)
	default:
		return nil, ErrUnknownFormat
	}
}

// verifyPackageChecksum recomputes the payload checksum and compares
// it against the manifest. A manifest without an integrity block
// passes; tampering with either side fails.
//
// The checksum covers the canonical form of the payload, so only
// data-bearing bytes are protected: changing any value or key fails
// verification, while reformatting the file (whitespace, indentation,
// key order) does not. Typed and raw-map producers thereby agree on
// the same digest.
func verifyPackageChecksum(doc map[string]any) error {
	manifest, _ := doc["manifest"].(map[string]any)
	integrity, ok := manifest["integrity"].(map[string]any)
	if !ok {
		return nil
	}
	stored, _ := integrity["checksum"].(string)
	canonical, err := model.CanonicalJSON(doc["payload"])
	if err != nil {
		return fmt.Errorf("canonicalize payload: %w", err)
	}
	return envelope.VerifyChecksum(canonical, stored)
}

// ImportPayload remaps and writes an already validated payload.
func (s *Service) ImportPayload(ctx context.Context, payload *model.Payload, strategy remap.Strategy) (*model.ImportResult, error) {
	if err := s.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	if strategy == remap.StrategyReplace {
		empty, err := s.domainEmpty(ctx)
		if err != nil {
			return nil, err
		}
		if !empty {
			return nil, ErrReplaceNotCleared
		}
	}

	existing, err := s.collectExistingIDs(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := remap.Resolve(payload, existing, strategy)
	if err != nil {
		return nil, err
	}

	result := &model.ImportResult{Warnings: plan.Warnings}
	docs, err := payloadDocs(&plan.Payload)
	if err != nil {
		return nil, err
	}
	for _, table := range storage.WriteOrder() {
		batch := docs[table]
		if len(batch) == 0 {
			continue
		}
		if err := s.primary.BulkPut(ctx, table, batch); err != nil {
			werr := &storage.WriteError{Table: table, Err: err}
			result.Errors = append(result.Errors, werr.Error())
			s.log.Error("import write failed", "table", table.String(), "error", err.Error())
			continue
		}
		s.countImported(result, table, len(batch))
		s.mirror("import "+table.String(), func(b storage.Backend) error {
			return b.BulkPut(ctx, table, batch)
		})
	}

	if err := s.writeKeyed(ctx, storage.TableSettings, plan.Payload.Settings, result); err != nil {
		return nil, err
	}
	if err := s.writeKeyed(ctx, storage.TableSnapshot, plan.Payload.StorageSnapshot, result); err != nil {
		return nil, err
	}

	s.log.Info("import complete",
		"sessions", result.ImportedSessions,
		"messages", result.ImportedMessages,
		"warnings", len(result.Warnings),
		"errors", len(result.Errors))
	return result, nil
}

func (s *Service) countImported(result *model.ImportResult, table storage.Table, n int) {
	switch table {
	case storage.TableSessions:
		result.ImportedSessions += n
	case storage.TableMessages:
		result.ImportedMessages += n
	case storage.TableProjects:
		result.ImportedProjects += n
	case storage.TableKnowledgeFiles:
		result.ImportedKnowledgeFiles += n
	case storage.TableSummaries:
		result.ImportedSummaries += n
	}
}

// writeKeyed stores a settings-style bag, one document per key.
func (s *Service) writeKeyed(ctx context.Context, table storage.Table, bag map[string]any, result *model.ImportResult) error {
	if len(bag) == 0 {
		return nil
	}
	batch := make(map[string][]byte, len(bag))
	for key, value := range bag {
		doc, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", table, key, err)
		}
		batch[key] = doc
	}
	if err := s.primary.BulkPut(ctx, table, batch); err != nil {
		werr := &storage.WriteError{Table: table, Err: err}
		result.Errors = append(result.Errors, werr.Error())
		s.log.Error("import write failed", "table", table.String(), "error", err.Error())
		return nil
	}
	s.mirror("import "+table.String(), func(b storage.Backend) error {
		return b.BulkPut(ctx, table, batch)
	})
	return nil
}

// ClearDomainData removes every domain table from both backends in
// child-first order. This is the only destructive operation the
// service exposes and is never invoked implicitly.
func (s *Service) ClearDomainData(ctx context.Context) error {
	for _, table := range storage.ClearOrder() {
		if err := s.primary.Clear(ctx, table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		s.mirror("clear "+table.String(), func(b storage.Backend) error {
			return b.Clear(ctx, table)
		})
	}
	s.log.Info("domain data cleared")
	return nil
}

func (s *Service) domainEmpty(ctx context.Context) (bool, error) {
	for _, table := range storage.EntityTables() {
		n, err := s.primary.Count(ctx, table)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) collectExistingIDs(ctx context.Context) (remap.ExistingIDs, error) {
	existing := remap.ExistingIDs{}
	for _, table := range storage.EntityTables() {
		ids, err := s.primary.ListIDs(ctx, table)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		existing[table] = set
	}
	return existing, nil
}

// payloadDocs encodes every entity collection into per-table document
// batches keyed by identifier.
func payloadDocs(p *model.Payload) (map[storage.Table]map[string][]byte, error) {
	out := map[storage.Table]map[string][]byte{}
	add := func(table storage.Table, id string, entity any) error {
		doc, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", table, id, err)
		}
		if out[table] == nil {
			out[table] = map[string][]byte{}
		}
		out[table][id] = doc
		return nil
	}
	for _, e := range p.Sessions {
		if err := add(storage.TableSessions, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Messages {
		if err := add(storage.TableMessages, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Projects {
		if err := add(storage.TableProjects, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.KnowledgeFiles {
		if err := add(storage.TableKnowledgeFiles, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Summaries {
		if err := add(storage.TableSummaries, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Folders {
		if err := add(storage.TableFolders, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Documents {
		if err := add(storage.TableDocuments, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Workflows {
		if err := add(storage.TableWorkflows, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.WorkflowExecutions {
		if err := add(storage.TableWorkflowExecutions, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.AgentTraces {
		if err := add(storage.TableAgentTraces, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Checkpoints {
		if err := add(storage.TableCheckpoints, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.ContextFiles {
		if err := add(storage.TableContextFiles, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.VideoProjects {
		if err := add(storage.TableVideoProjects, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Assets {
		if err := add(storage.TableAssets, e.ID, e); err != nil {
			return nil, err
		}
	}
	for _, e := range p.MCPServers {
		if err := add(storage.TableMCPServers, e.ID, e); err != nil {
			return nil, err
		}
	}
	for key, a := range p.Artifacts {
		if err := add(storage.TableArtifacts, key, a); err != nil {
			return nil, err
		}
	}
	return out, nil
}
