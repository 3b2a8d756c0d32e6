// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package legacy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cognia/services/backup/envelope"
	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/schema"
)

func legacyDoc(t *testing.T) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"version": "2.0",
		"exportedAt": "2024-05-01T12:00:00Z",
		"sessions": [
			{"id": "s1", "title": "Old chat", "createdAt": "2024-04-30T08:15:00.000Z"}
		],
		"indexedDB": {
			"messages": [
				{"id": "m1", "sessionId": "s1", "role": "user", "content": "hi",
				 "createdAt": "2024-04-30T08:15:01"}
			],
			"projects": [{"id": "p1", "name": "Research"}],
			"artifacts": [
				{"id": "a1", "type": "code", "content": "print(1)"}
			],
			"settings": {"theme": "dark"}
		}
	}`), &doc))
	return doc
}

// TestNormalizeShape verifies a legacy export upgrades to a document
// the v3 schema accepts.
func TestNormalizeShape(t *testing.T) {
	upgraded, err := Normalize(legacyDoc(t))
	require.NoError(t, err)

	assert.Equal(t, model.PackageVersion, upgraded["version"])
	require.NoError(t, schema.PackageV3().Check(upgraded))
}

// TestNormalizeDefaultsEmptyCollections verifies absent tables become
// empty collections instead of being omitted.
func TestNormalizeDefaultsEmptyCollections(t *testing.T) {
	upgraded, err := Normalize(map[string]any{"version": "2.0"})
	require.NoError(t, err)

	payload := upgraded["payload"].(map[string]any)
	assert.Equal(t, []any{}, payload["sessions"])
	assert.Equal(t, []any{}, payload["summaries"])
	assert.Equal(t, []any{}, payload["knowledgeFiles"])
	assert.Equal(t, map[string]any{}, payload["settings"])
	require.NoError(t, schema.PackageV3().Check(upgraded))
}

// TestNormalizeRevivesDates verifies ISO-8601 strings become real date
// values, including zone-less timestamps read as UTC.
func TestNormalizeRevivesDates(t *testing.T) {
	upgraded, err := Normalize(legacyDoc(t))
	require.NoError(t, err)

	payload := upgraded["payload"].(map[string]any)
	session := payload["sessions"].([]any)[0].(map[string]any)
	created, ok := session["createdAt"].(time.Time)
	require.True(t, ok, "createdAt should be revived to a date value")
	assert.Equal(t, 2024, created.Year())

	message := payload["messages"].([]any)[0].(map[string]any)
	msgCreated, ok := message["createdAt"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.UTC, msgCreated.Location())
}

// TestReviveDatesLeavesNonDates verifies near-matches and ordinary
// strings survive untouched.
func TestReviveDatesLeavesNonDates(t *testing.T) {
	value := ReviveDates(map[string]any{
		"title":   "2024 review",
		"almost":  "2024-13-99T99:99:99",
		"content": "meeting at 2024-05-01T12:00:00Z was long",
	}).(map[string]any)

	assert.Equal(t, "2024 review", value["title"])
	assert.Equal(t, "2024-13-99T99:99:99", value["almost"])
	assert.IsType(t, "", value["content"])
}

// TestNormalizeArtifactsArrayToDictionary verifies the early list
// shape is re-keyed by artifact id.
func TestNormalizeArtifactsArrayToDictionary(t *testing.T) {
	upgraded, err := Normalize(legacyDoc(t))
	require.NoError(t, err)

	payload := upgraded["payload"].(map[string]any)
	artifacts := payload["artifacts"].(map[string]any)
	require.Contains(t, artifacts, "a1")
	assert.Equal(t, "code", artifacts["a1"].(map[string]any)["type"])
}

// TestNormalizeChecksumMatchesPayload verifies the fresh manifest's
// checksum covers the rebuilt payload.
func TestNormalizeChecksumMatchesPayload(t *testing.T) {
	upgraded, err := Normalize(legacyDoc(t))
	require.NoError(t, err)

	manifest := upgraded["manifest"].(map[string]any)
	integrity := manifest["integrity"].(map[string]any)

	canonical, err := model.CanonicalJSON(upgraded["payload"])
	require.NoError(t, err)
	assert.Equal(t, envelope.Checksum(canonical), integrity["checksum"])
	assert.Equal(t, string(model.BackendWebDexie), manifest["backend"])
}

// TestNormalizeDoesNotMutateInput verifies the legacy document is left
// as decoded.
func TestNormalizeDoesNotMutateInput(t *testing.T) {
	doc := legacyDoc(t)
	before, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = Normalize(doc)
	require.NoError(t, err)

	after, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}
