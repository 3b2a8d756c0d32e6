// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package legacy upgrades pre-v3 flat exports into the current
// manifest/payload package shape.
//
// Legacy exports look like
//
//	{"version": "2.0", "exportedAt": ..., "sessions": [...],
//	 "indexedDB": {"messages": [...], "projects": [...], ...}}
//
// Normalization maps every legacy table into the v3 payload, defaults
// absent tables to empty collections, speculatively revives ISO-8601
// date strings anywhere in the structure, and wraps the result in a
// fresh manifest with a recomputed checksum. Downstream code never
// special-cases legacy versus current past this point: the output is
// validated by the same v3 schema as a native export.
package legacy

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/cognia/services/backup/envelope"
	"github.com/AleutianAI/cognia/services/backup/model"
)

// legacyTables maps v3 payload keys to the legacy indexedDB table
// holding them. Sessions live at the top level of the legacy shape and
// are handled separately.
var legacyTables = []string{
	"messages",
	"projects",
	"knowledgeFiles",
	"summaries",
	"folders",
	"documents",
	"workflows",
	"workflowExecutions",
	"agentTraces",
	"checkpoints",
	"contextFiles",
	"videoProjects",
	"assets",
	"mcpServers",
}

// isoDatePattern matches the prefix of an ISO-8601 timestamp. A string
// matching it is speculatively parsed into a date value; legacy exports
// serialize all dates as plain strings.
var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

// Normalize upgrades a decoded pre-v3 export into a raw v3 package.
//
// The result is an untyped document ready for schema validation, with
// a fresh manifest whose checksum covers the rebuilt payload. The input
// map is not modified.
//
// Inputs:
//
//	raw - The decoded legacy document. Must carry a pre-v3 version;
//	      callers classify with model.DetectFormat first.
//
// Outputs:
//
//	map[string]any - The v3-shaped package document.
//	error - Non-nil if the rebuilt payload cannot be serialized.
func Normalize(raw map[string]any) (map[string]any, error) {
	payload := map[string]any{}

	payload["sessions"] = collection(raw, "sessions")

	indexed, _ := raw["indexedDB"].(map[string]any)
	for _, table := range legacyTables {
		payload[table] = collection(indexed, table)
	}

	payload["artifacts"] = artifactDictionary(indexed)
	payload["settings"] = dictionary(indexed, "settings")
	payload["storageSnapshot"] = dictionary(indexed, "storageSnapshot")

	revived, ok := ReviveDates(payload).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("revive dates: payload is not an object")
	}

	canonical, err := model.CanonicalJSON(revived)
	if err != nil {
		return nil, fmt.Errorf("serialize normalized payload: %w", err)
	}

	manifest := map[string]any{
		"version": model.PackageVersion,
		// float64 so the document matches what json.Unmarshal would
		// produce; the validator compares constants structurally.
		"schemaVersion": float64(model.SchemaVersion),
		"traceId":       uuid.NewString(),
		"exportedAt":    exportedAt(raw),
		// Pre-v3 exports only ever came out of the browser profile.
		"backend": string(model.BackendWebDexie),
		"integrity": map[string]any{
			"algorithm": model.ChecksumAlgorithm,
			"checksum":  envelope.Checksum(canonical),
		},
	}

	return map[string]any{
		"version":  model.PackageVersion,
		"manifest": manifest,
		"payload":  revived,
	}, nil
}

// ReviveDates walks the value and converts every string matching the
// ISO-8601 prefix pattern into a time.Time. Applied recursively through
// arrays and nested objects. Maps and slices are rebuilt, never
// modified in place; unparseable near-matches stay strings.
func ReviveDates(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		revived := make(map[string]any, len(typed))
		for key, element := range typed {
			revived[key] = ReviveDates(element)
		}
		return revived
	case []any:
		revived := make([]any, len(typed))
		for i, element := range typed {
			revived[i] = ReviveDates(element)
		}
		return revived
	case string:
		if !isoDatePattern.MatchString(typed) {
			return typed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, typed); err == nil {
			return parsed
		}
		// Zone-less timestamps are read as UTC.
		if parsed, err := time.Parse("2006-01-02T15:04:05.999999999", typed); err == nil {
			return parsed.UTC()
		}
		return typed
	default:
		return value
	}
}

// collection returns the named array from source, or an empty one.
// Absent tables become empty collections rather than being omitted.
func collection(source map[string]any, key string) []any {
	if source == nil {
		return []any{}
	}
	if array, ok := source[key].([]any); ok {
		return array
	}
	return []any{}
}

func dictionary(source map[string]any, key string) map[string]any {
	if source == nil {
		return map[string]any{}
	}
	if object, ok := source[key].(map[string]any); ok {
		return object
	}
	return map[string]any{}
}

// artifactDictionary accepts either dictionary or array legacy shapes.
// Early exporters wrote artifacts as a list; the v3 payload keys them
// by id.
func artifactDictionary(indexed map[string]any) map[string]any {
	if indexed == nil {
		return map[string]any{}
	}
	if object, ok := indexed["artifacts"].(map[string]any); ok {
		return object
	}
	byID := map[string]any{}
	if array, ok := indexed["artifacts"].([]any); ok {
		for _, element := range array {
			artifact, ok := element.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := artifact["id"].(string); ok && id != "" {
				byID[id] = artifact
			}
		}
	}
	return byID
}

func exportedAt(raw map[string]any) string {
	if text, ok := raw["exportedAt"].(string); ok && text != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return parsed.Format(time.RFC3339Nano)
		}
	}
	return time.Now().UTC().Format(time.RFC3339Nano)
}
