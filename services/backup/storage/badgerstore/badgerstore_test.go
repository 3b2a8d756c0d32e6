// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

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

// TestKind verifies the document store reports the browser backend
// identity.
func TestKind(t *testing.T) {
	store := openTestStore(t)
	assert.Equal(t, storage.KindDocument, store.Kind())
}

// TestPutGetRoundTrip verifies a stored document reads back verbatim.
func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := []byte(`{"id":"s1","title":"Hello"}`)
	require.NoError(t, store.Put(ctx, storage.TableSessions, "s1", doc))

	got, err := store.Get(ctx, storage.TableSessions, "s1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

// TestGetNotFound verifies missing documents surface ErrNotFound.
func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), storage.TableSessions, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestTablesAreIsolated verifies identical ids in different tables do
// not collide.
func TestTablesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storage.TableSessions, "x", []byte(`{"kind":"session"}`)))
	require.NoError(t, store.Put(ctx, storage.TableMessages, "x", []byte(`{"kind":"message"}`)))

	session, err := store.Get(ctx, storage.TableSessions, "x")
	require.NoError(t, err)
	assert.Contains(t, string(session), "session")

	n, err := store.Count(ctx, storage.TableSessions)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestBulkPutAndList verifies batch writes land atomically and list
// back completely.
func TestBulkPutAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	docs := map[string][]byte{
		"m1": []byte(`{"id":"m1"}`),
		"m2": []byte(`{"id":"m2"}`),
		"m3": []byte(`{"id":"m3"}`),
	}
	require.NoError(t, store.BulkPut(ctx, storage.TableMessages, docs))

	listed, err := store.List(ctx, storage.TableMessages)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	ids, err := store.ListIDs(ctx, storage.TableMessages)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, ids)
}

// TestDelete verifies removal, and that deleting a missing id is not
// an error.
func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storage.TableProjects, "p1", []byte(`{}`)))
	require.NoError(t, store.Delete(ctx, storage.TableProjects, "p1"))
	require.NoError(t, store.Delete(ctx, storage.TableProjects, "p1"))

	_, err := store.Get(ctx, storage.TableProjects, "p1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestClear verifies Clear empties one table and leaves others alone.
func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storage.TableSessions, "s1", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, storage.TableSettings, "theme", []byte(`"dark"`)))

	require.NoError(t, store.Clear(ctx, storage.TableSessions))

	n, err := store.Count(ctx, storage.TableSessions)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Count(ctx, storage.TableSettings)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestClosedStore verifies operations after Close fail with ErrClosed.
func TestClosedStore(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background(), storage.TableSessions, "s1")
	require.ErrorIs(t, err, storage.ErrClosed)
	err = store.Put(context.Background(), storage.TableSessions, "s1", []byte(`{}`))
	require.ErrorIs(t, err, storage.ErrClosed)
}

// TestContextCancellation verifies a canceled context aborts reads.
func TestContextCancellation(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx, storage.TableSessions)
	require.ErrorIs(t, err, context.Canceled)
}

// TestPersistentOpen verifies an on-disk store reopens with its data.
func TestPersistentOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), storage.TableSessions, "s1", []byte(`{"id":"s1"}`)))
	require.NoError(t, store.Close())

	reopened, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.Get(context.Background(), storage.TableSessions, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1"}`, string(doc))
}
