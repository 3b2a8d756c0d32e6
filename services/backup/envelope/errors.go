// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envelope

import (
	"errors"
	"fmt"
)

// Sentinel errors for envelope operations.
var (
	// ErrDecryption is returned when the ciphertext cannot be opened:
	// wrong passphrase or corrupted ciphertext. It is distinct from
	// ErrIntegrity so a caller can prompt for a different passphrase
	// instead of warning about file corruption.
	ErrDecryption = errors.New("decryption failed")

	// ErrIntegrity is returned when a checksum disagrees with the data
	// it covers. Decryption success alone is not proof of integrity;
	// the plaintext checksum is always re-verified.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrWeakKDF is returned when an envelope's stored iteration count
	// is below the accepted floor. Honoring an attacker-lowered count
	// would turn the KDF into a brute-force accelerator.
	ErrWeakKDF = errors.New("kdf iteration count below minimum")

	// ErrEmptyPassphrase is returned when sealing or opening with no
	// passphrase material.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// IntegrityError reports a checksum mismatch with both digests.
//
// It wraps ErrIntegrity so callers can branch with errors.Is while
// still logging the exact digests involved.
type IntegrityError struct {
	// Expected is the checksum stored with the data.
	Expected string

	// Actual is the checksum recomputed from the data.
	Actual string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch: stored %s, computed %s", e.Expected, e.Actual)
}

// Unwrap returns ErrIntegrity for errors.Is support.
func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
