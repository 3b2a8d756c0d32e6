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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cognia/services/backup/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func putSession(t *testing.T, store *Store, id string) {
	t.Helper()
	doc := []byte(`{"id":"` + id + `","title":"T","createdAt":"2026-08-30T10:00:00Z","updatedAt":"2026-08-30T10:00:00Z"}`)
	require.NoError(t, store.Put(context.Background(), storage.TableSessions, id, doc))
}

// TestKind verifies the relational store reports the desktop backend
// identity.
func TestKind(t *testing.T) {
	store := openTestStore(t)
	assert.Equal(t, storage.KindRelational, store.Kind())
}

// TestPutGetRoundTrip verifies a stored document reads back verbatim.
func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := []byte(`{"id":"s1","title":"Hello","createdAt":"2026-08-30T10:00:00Z"}`)
	require.NoError(t, store.Put(ctx, storage.TableSessions, "s1", doc))

	got, err := store.Get(ctx, storage.TableSessions, "s1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

// TestGetNotFound verifies missing rows surface ErrNotFound.
func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), storage.TableSessions, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestUpsertReplaces verifies writing the same id twice keeps one row
// with the newer payload.
func TestUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	putSession(t, store, "s1")
	updated := []byte(`{"id":"s1","title":"Renamed","createdAt":"2026-08-30T10:00:00Z"}`)
	require.NoError(t, store.Put(ctx, storage.TableSessions, "s1", updated))

	n, err := store.Count(ctx, storage.TableSessions)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, storage.TableSessions, "s1")
	require.NoError(t, err)
	assert.Contains(t, string(got), "Renamed")
}

// TestForeignKeyCascade verifies deleting a session removes its
// messages and summaries through the schema's foreign keys.
func TestForeignKeyCascade(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	putSession(t, store, "s1")
	msg := []byte(`{"id":"m1","sessionId":"s1","role":"user","content":"hi","createdAt":"2026-08-30T10:00:01Z"}`)
	require.NoError(t, store.Put(ctx, storage.TableMessages, "m1", msg))
	sum := []byte(`{"id":"sum1","sessionId":"s1","createdAt":"2026-08-30T10:00:02Z"}`)
	require.NoError(t, store.Put(ctx, storage.TableSummaries, "sum1", sum))

	require.NoError(t, store.Delete(ctx, storage.TableSessions, "s1"))

	_, err := store.Get(ctx, storage.TableMessages, "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Get(ctx, storage.TableSummaries, "sum1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// TestOrphanMessageRejected verifies the foreign key blocks messages
// whose session does not exist.
func TestOrphanMessageRejected(t *testing.T) {
	store := openTestStore(t)
	msg := []byte(`{"id":"m1","sessionId":"no-such-session","role":"user","createdAt":"2026-08-30T10:00:00Z"}`)
	err := store.Put(context.Background(), storage.TableMessages, "m1", msg)
	require.Error(t, err)
}

// TestBulkPutAtomic verifies one bad row rolls back the whole batch.
func TestBulkPutAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	putSession(t, store, "s1")
	docs := map[string][]byte{
		"m1": []byte(`{"id":"m1","sessionId":"s1","role":"user","createdAt":"2026-08-30T10:00:00Z"}`),
		"m2": []byte(`{"id":"m2","sessionId":"missing","role":"user","createdAt":"2026-08-30T10:00:00Z"}`),
	}
	require.Error(t, store.BulkPut(ctx, storage.TableMessages, docs))

	n, err := store.Count(ctx, storage.TableMessages)
	require.NoError(t, err)
	assert.Zero(t, n, "failed batch must not leave partial rows")
}

// TestListAndListIDs verifies full-table reads for generic tables.
func TestListAndListIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BulkPut(ctx, storage.TableFolders, map[string][]byte{
		"f1": []byte(`{"id":"f1","name":"A"}`),
		"f2": []byte(`{"id":"f2","name":"B"}`),
	}))

	docs, err := store.List(ctx, storage.TableFolders)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	ids, err := store.ListIDs(ctx, storage.TableFolders)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1", "f2"}, ids)
}

// TestClear verifies Clear empties one table only.
func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	putSession(t, store, "s1")
	require.NoError(t, store.Put(ctx, storage.TableSettings, "theme", []byte(`"dark"`)))

	require.NoError(t, store.Clear(ctx, storage.TableSessions))

	n, err := store.Count(ctx, storage.TableSessions)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Count(ctx, storage.TableSettings)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestSettingsTable verifies keyed-value rows survive the generic
// two-column shape.
func TestSettingsTable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storage.TableSettings, "fontSize", []byte(`14`)))
	doc, err := store.Get(ctx, storage.TableSettings, "fontSize")
	require.NoError(t, err)
	assert.Equal(t, []byte(`14`), doc)
}
