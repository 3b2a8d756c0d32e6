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

import "errors"

// Sentinel errors for import orchestration.
var (
	// ErrUnknownFormat is returned when the input document carries no
	// recognizable version discriminator.
	ErrUnknownFormat = errors.New("unrecognized backup format")

	// ErrPassphraseRequired is returned when the input is an encrypted
	// envelope and no passphrase was supplied.
	ErrPassphraseRequired = errors.New("passphrase required for encrypted backup")

	// ErrReplaceNotCleared is returned when a replace-strategy import
	// runs against a backend that still holds domain data. Clearing is
	// an explicit, separate operation; the service never clears as a
	// side effect.
	ErrReplaceNotCleared = errors.New("replace import requires ClearDomainData first")

	// ErrNestedEnvelope is returned when decrypting an envelope yields
	// another envelope. One layer of sealing is the contract.
	ErrNestedEnvelope = errors.New("encrypted envelope contains another envelope")
)
