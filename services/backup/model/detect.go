// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Format classifies the top-level shape of a backup document.
type Format int

const (
	// FormatUnknown means the document carries no recognizable version.
	FormatUnknown Format = iota

	// FormatPackageV3 is the current plain package shape.
	FormatPackageV3

	// FormatEncryptedV1 is the encrypted envelope shape.
	FormatEncryptedV1

	// FormatLegacy is a pre-v3 flat export.
	FormatLegacy
)

// String returns the human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatPackageV3:
		return "package-v3"
	case FormatEncryptedV1:
		return "encrypted-v1"
	case FormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// versionProbe decodes only the discriminator field. Version is kept
// as raw JSON because legacy exports sometimes wrote it as a number.
type versionProbe struct {
	Version json.RawMessage `json:"version"`
}

// DetectFormat classifies raw JSON by its top-level "version" field.
//
// Classification never probes for the presence of other fields: a
// document claiming "3.0" with a missing payload is a v3 package that
// fails schema validation, not a legacy export.
//
// Rules:
//   - "3.0"                    -> FormatPackageV3
//   - "enc-v1"                 -> FormatEncryptedV1
//   - any numeric version < 3  -> FormatLegacy (e.g. "2.0", "1", 2)
//   - everything else          -> FormatUnknown
func DetectFormat(raw []byte) (Format, error) {
	var probe versionProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return FormatUnknown, fmt.Errorf("parse backup document: %w", err)
	}
	if len(probe.Version) == 0 {
		return FormatUnknown, nil
	}

	var version string
	if err := json.Unmarshal(probe.Version, &version); err != nil {
		// Legacy exporters wrote the version as a bare number.
		var numeric float64
		if err := json.Unmarshal(probe.Version, &numeric); err != nil {
			return FormatUnknown, nil
		}
		version = strconv.FormatFloat(numeric, 'f', -1, 64)
	}

	switch version {
	case PackageVersion:
		return FormatPackageV3, nil
	case EnvelopeVersion:
		return FormatEncryptedV1, nil
	}
	if major, ok := majorVersion(version); ok && major < 3 {
		return FormatLegacy, nil
	}
	return FormatUnknown, nil
}

// majorVersion parses the leading integer of a dotted version string.
func majorVersion(version string) (int, bool) {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return major, true
}
