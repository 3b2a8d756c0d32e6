// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the versioned backup package data model.
//
// A backup moves the full Cognia application state (chat sessions,
// messages, projects, knowledge files, summaries, artifacts, settings
// and auxiliary tables) between the document backend and the relational
// backend as a single point-in-time package. The package comes in three
// on-disk shapes:
//
//   - BackupPackage (version "3.0"): manifest + payload, plain JSON
//   - EncryptedEnvelope (version "enc-v1"): AES-GCM sealed package
//   - legacy flat exports (version "2.0" or earlier), upgraded by the
//     legacy package before anything else touches them
//
// The shape of an input is decided by the top-level "version"
// discriminator only. Never probe for the presence of unrelated fields.
//
// # Design Principles
//
// This package holds pure types and the format discriminator. It has no
// behavior beyond JSON detection and canonical serialization; schema
// validation, encryption and persistence live in sibling packages.
//
// # Thread Safety
//
// All types are plain data. Instances are not safe for concurrent
// modification; exported payloads are snapshots and must be treated as
// read-only once assembled.
package model

import (
	"encoding/json"
	"time"
)

// Version strings and discriminators for the supported package shapes.
const (
	// PackageVersion is the current backup package version.
	PackageVersion = "3.0"

	// SchemaVersion is the numeric schema version carried by the manifest.
	SchemaVersion = 3

	// EnvelopeVersion is the discriminator of the encrypted envelope shape.
	EnvelopeVersion = "enc-v1"

	// ChecksumAlgorithm is the integrity algorithm used by manifests and
	// envelopes. The checksum is always computed over the serialized
	// plaintext payload, never over ciphertext.
	ChecksumAlgorithm = "SHA-256"

	// EncryptionFormat is the value of the manifest encryption marker when
	// a package was exported through the envelope.
	EncryptionFormat = "encrypted-envelope-v1"
)

// Backend identifies which storage backend produced a manifest.
//
// The set is a fixed two-value enumeration; any other string fails
// schema validation.
type Backend string

const (
	// BackendWebDexie is the browser-resident document store.
	BackendWebDexie Backend = "web-dexie"

	// BackendDesktopSQLite is the native relational store.
	BackendDesktopSQLite Backend = "desktop-sqlite"
)

// Valid reports whether the backend identifier is one of the two
// known values.
func (b Backend) Valid() bool {
	return b == BackendWebDexie || b == BackendDesktopSQLite
}

// Integrity is the manifest integrity block.
//
// When Checksum is non-empty it must equal the checksum recomputed from
// the canonical serialization of the payload at validation time.
type Integrity struct {
	// Algorithm is always "SHA-256".
	Algorithm string `json:"algorithm"`

	// Checksum is the lowercase hex digest of the serialized payload.
	// Empty means the producer did not record one.
	Checksum string `json:"checksum"`
}

// EncryptionMarker flags a manifest whose package traveled through the
// encrypted envelope. It carries no key material.
type EncryptionMarker struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format"`
}

// Manifest is the metadata wrapper around a Payload.
//
// A manifest is produced fresh on every export and is never persisted
// independently of its payload.
type Manifest struct {
	// Version mirrors the package version ("3.0").
	Version string `json:"version"`

	// SchemaVersion is the numeric schema version (3).
	SchemaVersion int `json:"schemaVersion"`

	// TraceID correlates an export with log lines. Random UUID.
	TraceID string `json:"traceId"`

	// ExportedAt is the export timestamp.
	ExportedAt time.Time `json:"exportedAt"`

	// Backend names the store that produced the export.
	Backend Backend `json:"backend"`

	// Integrity carries the payload checksum. Nil on the manifest copy
	// embedded in an encrypted envelope.
	Integrity *Integrity `json:"integrity,omitempty"`

	// Encryption is present only on packages sealed into an envelope.
	Encryption *EncryptionMarker `json:"encryption,omitempty"`
}

// WithoutIntegrity returns a copy of the manifest with the integrity
// block removed. The envelope embeds this copy so the plaintext
// checksum is stored exactly once, on the envelope itself.
func (m Manifest) WithoutIntegrity() Manifest {
	clone := m
	clone.Integrity = nil
	return clone
}

// BackupPackage is the top-level plain shape (version "3.0").
type BackupPackage struct {
	Version  string   `json:"version"`
	Manifest Manifest `json:"manifest"`
	Payload  Payload  `json:"payload"`
}

// KDFParams are the key-derivation parameters stored on an envelope.
//
// They are recorded so a future reader can re-derive the key without
// out-of-band knowledge. Iterations below a safety floor are rejected
// when opening, see the envelope package.
type KDFParams struct {
	// Algorithm is always "PBKDF2".
	Algorithm string `json:"algorithm"`

	// Hash is always "SHA-256".
	Hash string `json:"hash"`

	// Iterations is the PBKDF2 iteration count (600000 on seal).
	Iterations int `json:"iterations"`

	// Salt is the base64-encoded random salt.
	Salt string `json:"salt"`
}

// EncryptedEnvelope is the sealed sibling shape (version "enc-v1").
//
// Ciphertext is the AES-GCM encryption of a serialized BackupPackage.
// Checksum is the SHA-256 hex digest of the plaintext, stored beside
// the ciphertext so integrity can be verified independently of the
// cipher suite in use.
type EncryptedEnvelope struct {
	Version    string    `json:"version"`
	Algorithm  string    `json:"algorithm"`
	KDF        KDFParams `json:"kdf"`
	IV         string    `json:"iv"`
	Ciphertext string    `json:"ciphertext"`

	// Manifest is a copy of the package manifest minus its integrity
	// block. It lets tooling show export metadata without a passphrase.
	Manifest Manifest `json:"manifest"`

	// Checksum is the SHA-256 hex digest of the decrypted plaintext.
	Checksum string `json:"checksum"`
}

// CanonicalJSON serializes v with lexicographically sorted object keys.
//
// Checksums are computed over this form. Struct field order and map
// iteration order both vary between producers, so the value is run
// through an untyped decode/encode cycle: encoding/json always sorts
// map keys, which gives every producer the same bytes for the same
// logical payload.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
