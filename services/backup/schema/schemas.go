// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import "github.com/AleutianAI/cognia/services/backup/model"

// PackageV3 returns the fixed schema for the plain v3 backup package.
//
// Entity objects are deliberately open (no NoAdditional): newer
// exporters may carry extra fields and an import must not reject them.
// The top level is closed because an unknown top-level key means the
// document is not a well-formed package at all.
func PackageV3() *Node {
	return &Node{
		Type:         "object",
		Required:     []string{"version", "manifest", "payload"},
		NoAdditional: true,
		Properties: map[string]*Node{
			"version":  {Const: model.PackageVersion},
			"manifest": manifestSchema(true),
			"payload":  payloadSchema(),
		},
	}
}

// EncryptedEnvelopeV1 returns the fixed schema for the sealed shape.
func EncryptedEnvelopeV1() *Node {
	return &Node{
		Type:         "object",
		Required:     []string{"version", "algorithm", "kdf", "iv", "ciphertext", "manifest", "checksum"},
		NoAdditional: true,
		Properties: map[string]*Node{
			"version":   {Const: model.EnvelopeVersion},
			"algorithm": {Const: "AES-GCM"},
			"kdf": {
				Type:     "object",
				Required: []string{"algorithm", "hash", "iterations", "salt"},
				Properties: map[string]*Node{
					"algorithm":  {Const: "PBKDF2"},
					"hash":       {Const: model.ChecksumAlgorithm},
					"iterations": {Type: "integer"},
					"salt":       {Type: "string"},
				},
			},
			"iv":         {Type: "string"},
			"ciphertext": {Type: "string"},
			// The embedded manifest travels without its integrity block;
			// the envelope's own checksum field covers the plaintext.
			"manifest": manifestSchema(false),
			"checksum": {Type: "string"},
		},
	}
}

func manifestSchema(requireIntegrity bool) *Node {
	required := []string{"version", "schemaVersion", "traceId", "exportedAt", "backend"}
	if requireIntegrity {
		required = append(required, "integrity")
	}
	return &Node{
		Type:     "object",
		Required: required,
		Properties: map[string]*Node{
			"version":       {Const: model.PackageVersion},
			"schemaVersion": {Const: float64(model.SchemaVersion)},
			"traceId":       {Type: "string"},
			"exportedAt":    {Type: "string"},
			"backend": {
				Type: "string",
				Enum: []any{string(model.BackendWebDexie), string(model.BackendDesktopSQLite)},
			},
			"integrity": {
				Type:     "object",
				Required: []string{"algorithm", "checksum"},
				Properties: map[string]*Node{
					"algorithm": {
						OneOf: []*Node{
							{Const: model.ChecksumAlgorithm},
							{Const: ""},
						},
					},
					"checksum": {Type: "string"},
				},
			},
			"encryption": {
				Type: "object",
				Properties: map[string]*Node{
					"enabled": {Type: "boolean"},
					"format":  {Type: "string"},
				},
			},
		},
	}
}

func payloadSchema() *Node {
	return &Node{
		Type:     "object",
		Required: []string{"sessions", "messages", "projects", "knowledgeFiles", "summaries"},
		Properties: map[string]*Node{
			"sessions":           entityArray("title"),
			"messages":           entityArray("sessionId", "role"),
			"projects":           entityArray("name"),
			"knowledgeFiles":     entityArray("projectId", "name"),
			"summaries":          entityArray("sessionId"),
			"folders":            entityArray("name"),
			"documents":          entityArray("title"),
			"workflows":          entityArray("name"),
			"workflowExecutions": entityArray("workflowId", "status"),
			"agentTraces":        entityArray(),
			"checkpoints":        entityArray("sessionId"),
			"contextFiles":       entityArray("name"),
			"videoProjects":      entityArray("name"),
			"assets":             entityArray("name"),
			"mcpServers":         entityArray("name"),

			// Artifacts are a dictionary keyed by artifact id.
			"artifacts": {
				Type:       "object",
				Additional: entityObject("type", "content"),
			},

			// Settings and the raw storage snapshot are dictionaries keyed
			// by arbitrary storage key. Values are opaque: only the
			// dictionary structure itself is checked.
			"settings":        {Type: "object", Additional: &Node{}},
			"storageSnapshot": {Type: "object", Additional: &Node{}},
		},
	}
}

// entityArray is an array of open entity objects, each requiring an id
// plus the named fields.
func entityArray(required ...string) *Node {
	return &Node{Type: "array", Items: entityObject(required...)}
}

func entityObject(required ...string) *Node {
	properties := map[string]*Node{"id": {Type: "string"}}
	for _, field := range required {
		if _, ok := properties[field]; !ok {
			properties[field] = &Node{Type: "string"}
		}
	}
	return &Node{
		Type:       "object",
		Required:   append([]string{"id"}, required...),
		Properties: properties,
	}
}
