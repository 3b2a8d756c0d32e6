// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package service is the unified persistence layer for chat state. It
// owns a primary backend and an optional secondary mirror, and exposes
// typed CRUD for every entity collection plus the export and import
// pipelines built on top of them.
//
// # Design Principles
//
//   - Primary-first: every write lands on the primary backend and only
//     succeeds or fails on the primary's outcome. Mirror writes are
//     best effort; a mirror failure is logged, counted, and swallowed
//     so the user-facing operation never degrades.
//   - No implicit destruction: the service never clears domain data as
//     a side effect. ClearDomainData is the only destructive entry
//     point and must be called explicitly.
//   - Rebuild on divergence: when the primary is a document store that
//     comes up empty while the mirror holds data, the service copies
//     the mirror's contents back into the primary before the first
//     read. Local caches are disposable; the relational store is the
//     durable source.
//
// # Thread Safety
//
// Service methods are safe for concurrent use. Rebuild detection is
// guarded by a mutex; everything else delegates to the backends, which
// provide their own synchronization.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/cognia/pkg/logging"
	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/storage"
)

// Service coordinates reads and writes across the primary backend and
// an optional mirror.
type Service struct {
	primary   storage.Backend
	secondary storage.Backend
	log       *logging.Logger

	mu      sync.Mutex
	rebuilt bool

	mirrorFailures atomic.Int64
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithMirror attaches a secondary backend. Every successful primary
// write is replayed onto it.
func WithMirror(b storage.Backend) Option {
	return func(s *Service) { s.secondary = b }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New builds a Service over the given primary backend.
//
// Description:
//
//	Constructs the persistence service. The primary backend is
//	required; a mirror and logger may be supplied via options.
//
// Inputs:
//
//	primary - authoritative backend for all reads and writes.
//	opts    - optional mirror and logger configuration.
//
// Outputs:
//
//	*Service - ready to use; rebuild runs lazily on first read.
func New(primary storage.Backend, opts ...Option) *Service {
	s := &Service{primary: primary}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	return s
}

// MirrorFailures reports how many mirror writes have failed since the
// service was constructed.
func (s *Service) MirrorFailures() int64 {
	return s.mirrorFailures.Load()
}

// mirror replays a write onto the secondary backend. Failures are
// logged and counted but never propagated.
func (s *Service) mirror(op string, fn func(storage.Backend) error) {
	if s.secondary == nil {
		return
	}
	if err := fn(s.secondary); err != nil {
		s.mirrorFailures.Add(1)
		s.log.Warn("mirror write failed",
			"op", op,
			"backend", string(s.secondary.Kind()),
			"error", err.Error())
	}
}

// Rebuild copies the mirror's contents into the primary when the
// primary document store is empty and the mirror is not.
//
// Description:
//
//	Detects the "fresh browser profile" case: the document store was
//	wiped but the relational mirror still holds the user's data. All
//	tables, including settings and the snapshot, are copied back in
//	parent-first order. Runs at most once per Service; read paths
//	trigger it lazily.
//
// Outputs:
//
//	error - nil when no rebuild was needed or the copy succeeded.
func (s *Service) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Service) ensureRebuilt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rebuilt {
		return nil
	}
	return s.rebuildLocked(ctx)
}

func (s *Service) rebuildLocked(ctx context.Context) error {
	s.rebuilt = true
	if s.secondary == nil || s.primary.Kind() != storage.KindDocument {
		return nil
	}
	primarySessions, err := s.primary.Count(ctx, storage.TableSessions)
	if err != nil {
		return fmt.Errorf("rebuild: count primary sessions: %w", err)
	}
	if primarySessions > 0 {
		return nil
	}
	mirrorSessions, err := s.secondary.Count(ctx, storage.TableSessions)
	if err != nil {
		return fmt.Errorf("rebuild: count mirror sessions: %w", err)
	}
	if mirrorSessions == 0 {
		return nil
	}

	s.log.Info("primary store empty, rebuilding from mirror",
		"sessions", mirrorSessions)
	tables := append(storage.WriteOrder(), storage.TableSettings, storage.TableSnapshot)
	for _, table := range tables {
		ids, err := s.secondary.ListIDs(ctx, table)
		if err != nil {
			return fmt.Errorf("rebuild: list %s: %w", table, err)
		}
		if len(ids) == 0 {
			continue
		}
		docs := make(map[string][]byte, len(ids))
		for _, id := range ids {
			doc, err := s.secondary.Get(ctx, table, id)
			if err != nil {
				return fmt.Errorf("rebuild: read %s/%s: %w", table, id, err)
			}
			docs[id] = doc
		}
		if err := s.primary.BulkPut(ctx, table, docs); err != nil {
			return fmt.Errorf("rebuild: write %s: %w", table, err)
		}
	}
	return nil
}

// putDoc marshals an entity and writes it to the primary, then mirrors.
func (s *Service) putDoc(ctx context.Context, table storage.Table, id string, entity any) error {
	doc, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, id, err)
	}
	if err := s.primary.Put(ctx, table, id, doc); err != nil {
		return err
	}
	s.mirror("put "+table.String(), func(b storage.Backend) error {
		return b.Put(ctx, table, id, doc)
	})
	return nil
}

// deleteDoc removes an entity from the primary, then mirrors.
func (s *Service) deleteDoc(ctx context.Context, table storage.Table, id string) error {
	if err := s.primary.Delete(ctx, table, id); err != nil {
		return err
	}
	s.mirror("delete "+table.String(), func(b storage.Backend) error {
		return b.Delete(ctx, table, id)
	})
	return nil
}

// getAs reads one document and decodes it into out.
func (s *Service) getAs(ctx context.Context, table storage.Table, id string, out any) error {
	doc, err := s.primary.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", table, id, err)
	}
	return nil
}

// listAs decodes every document in a table into a typed slice.
func listAs[E any](ctx context.Context, s *Service, table storage.Table) ([]E, error) {
	if err := s.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	docs, err := s.primary.List(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(docs))
	for _, doc := range docs {
		var e E
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", table, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// PutSession stores a session.
func (s *Service) PutSession(ctx context.Context, sess model.Session) error {
	return s.putDoc(ctx, storage.TableSessions, sess.ID, sess)
}

// GetSession loads one session by identifier.
func (s *Service) GetSession(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	err := s.getAs(ctx, storage.TableSessions, id, &sess)
	return sess, err
}

// ListSessions returns every stored session, most recently updated
// first.
func (s *Service) ListSessions(ctx context.Context) ([]model.Session, error) {
	sessions, err := listAs[model.Session](ctx, s, storage.TableSessions)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session together with its messages,
// summaries, and checkpoints. The relational mirror cascades through
// foreign keys; the document store is walked explicitly.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	messages, err := listAs[model.Message](ctx, s, storage.TableMessages)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if m.SessionID == id {
			if err := s.deleteDoc(ctx, storage.TableMessages, m.ID); err != nil {
				return err
			}
		}
	}
	summaries, err := listAs[model.Summary](ctx, s, storage.TableSummaries)
	if err != nil {
		return err
	}
	for _, sum := range summaries {
		if sum.SessionID == id {
			if err := s.deleteDoc(ctx, storage.TableSummaries, sum.ID); err != nil {
				return err
			}
		}
	}
	checkpoints, err := listAs[model.Checkpoint](ctx, s, storage.TableCheckpoints)
	if err != nil {
		return err
	}
	for _, cp := range checkpoints {
		if cp.SessionID == id {
			if err := s.deleteDoc(ctx, storage.TableCheckpoints, cp.ID); err != nil {
				return err
			}
		}
	}
	return s.deleteDoc(ctx, storage.TableSessions, id)
}

// PutMessage stores a message.
func (s *Service) PutMessage(ctx context.Context, msg model.Message) error {
	return s.putDoc(ctx, storage.TableMessages, msg.ID, msg)
}

// Messages returns one page of a session's messages ordered by
// creation time.
//
// Description:
//
//	Loads the session's messages, sorts them chronologically, and
//	slices out the requested window. limit <= 0 means no limit.
//
// Inputs:
//
//	sessionID - owning session.
//	branchID  - optional branch filter; empty matches every branch.
//	limit     - maximum number of items to return.
//	offset    - number of items to skip.
//
// Outputs:
//
//	model.MessagesPage - page items plus paging metadata.
func (s *Service) Messages(ctx context.Context, sessionID, branchID string, limit, offset int) (model.MessagesPage, error) {
	all, err := listAs[model.Message](ctx, s, storage.TableMessages)
	if err != nil {
		return model.MessagesPage{}, err
	}
	items := make([]model.Message, 0, len(all))
	for _, m := range all {
		if m.SessionID != sessionID {
			continue
		}
		if branchID != "" && m.BranchID != branchID {
			continue
		}
		items = append(items, m)
	}
	sortMessages(items)

	page := model.MessagesPage{Limit: limit, Offset: offset, Total: len(items)}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		page.Items = []model.Message{}
		return page, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
		page.HasMore = true
	}
	page.Items = items
	return page, nil
}

func sortMessages(items []model.Message) {
	// Stable so equal timestamps keep storage order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// PutProject stores a project.
func (s *Service) PutProject(ctx context.Context, p model.Project) error {
	return s.putDoc(ctx, storage.TableProjects, p.ID, p)
}

// ListProjects returns every stored project.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	return listAs[model.Project](ctx, s, storage.TableProjects)
}

// DeleteProject removes a project and its knowledge files.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	files, err := listAs[model.KnowledgeFile](ctx, s, storage.TableKnowledgeFiles)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.ProjectID == id {
			if err := s.deleteDoc(ctx, storage.TableKnowledgeFiles, f.ID); err != nil {
				return err
			}
		}
	}
	return s.deleteDoc(ctx, storage.TableProjects, id)
}

// PutKnowledgeFile stores a knowledge file.
func (s *Service) PutKnowledgeFile(ctx context.Context, f model.KnowledgeFile) error {
	return s.putDoc(ctx, storage.TableKnowledgeFiles, f.ID, f)
}

// PutSummary stores a session summary.
func (s *Service) PutSummary(ctx context.Context, sum model.Summary) error {
	return s.putDoc(ctx, storage.TableSummaries, sum.ID, sum)
}

// PutArtifact stores an artifact under its key.
func (s *Service) PutArtifact(ctx context.Context, key string, a model.Artifact) error {
	return s.putDoc(ctx, storage.TableArtifacts, key, a)
}

// GetArtifact loads one artifact by key.
func (s *Service) GetArtifact(ctx context.Context, key string) (model.Artifact, error) {
	var a model.Artifact
	err := s.getAs(ctx, storage.TableArtifacts, key, &a)
	return a, err
}

// SetSetting stores one application setting.
func (s *Service) SetSetting(ctx context.Context, key string, value any) error {
	return s.putDoc(ctx, storage.TableSettings, key, value)
}

// GetSetting loads one application setting into out.
func (s *Service) GetSetting(ctx context.Context, key string, out any) error {
	return s.getAs(ctx, storage.TableSettings, key, out)
}

// Settings returns the full settings bag keyed by setting name.
func (s *Service) Settings(ctx context.Context) (map[string]any, error) {
	return s.readKeyed(ctx, storage.TableSettings)
}

// readKeyed reads a keyed table (settings, snapshot) back into a map.
func (s *Service) readKeyed(ctx context.Context, table storage.Table) (map[string]any, error) {
	if err := s.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	ids, err := s.primary.ListIDs(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		doc, err := s.primary.Get(ctx, table, id)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", table, id, err)
		}
		out[id] = v
	}
	return out, nil
}
