// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package envelope seals and opens encrypted backup packages.
//
// Sealing derives a 256-bit key from a passphrase with PBKDF2-SHA256
// (600,000 iterations, fresh random salt), encrypts the serialized
// package with AES-256-GCM under a fresh 96-bit nonce, and stores a
// SHA-256 checksum of the plaintext beside the ciphertext. The checksum
// is independent of the cipher so integrity stays verifiable even if a
// later version swaps cipher suites.
//
// Opening re-derives the key from the stored salt and iteration count,
// decrypts, and re-verifies the plaintext checksum. A mismatch fails
// closed with ErrIntegrity; an authentication failure surfaces as
// ErrDecryption so the UI can distinguish wrong-passphrase from
// corrupted-file.
//
// Passphrase material is never part of the data model. It is supplied
// per call, preferably as a memguard enclave so the secret spends its
// idle life encrypted in memory; acquisition (platform credential
// store, per-profile secret) is the caller's concern.
//
// # Concurrency
//
// Key derivation is deliberately expensive (hundreds of milliseconds).
// Do not run two derivations for the same passphrase concurrently;
// there is nothing to gain and the cost doubles.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"github.com/AleutianAI/cognia/services/backup/model"
)

// Key-derivation and cipher parameters.
const (
	// Iterations is the PBKDF2 iteration count used when sealing.
	Iterations = 600000

	// MinIterations is the floor accepted when opening. Envelopes
	// claiming fewer iterations are rejected as tampered.
	MinIterations = 100000

	keySize   = 32 // AES-256
	saltSize  = 16
	nonceSize = 12 // GCM standard nonce
)

// Checksum returns the lowercase hex SHA-256 digest of data.
//
// The same digest function backs manifest integrity blocks and
// envelope plaintext checksums.
func Checksum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// VerifyChecksum recomputes the checksum of data and compares it to
// the stored value. An empty stored checksum passes: the producer
// recorded none, so there is nothing to disagree with.
func VerifyChecksum(data []byte, stored string) error {
	if stored == "" {
		return nil
	}
	actual := Checksum(data)
	if actual != stored {
		return &IntegrityError{Expected: stored, Actual: actual}
	}
	return nil
}

// NewPassphrase wraps passphrase text in a memguard enclave and wipes
// nothing itself; the caller should not retain the plain string.
func NewPassphrase(text string) *memguard.Enclave {
	return memguard.NewEnclave([]byte(text))
}

// Seal encrypts plaintext under the passphrase and returns the
// envelope.
//
// The manifest is embedded minus its integrity block; the envelope's
// own checksum field covers the plaintext instead.
//
// Inputs:
//
//	plaintext - Serialized backup package. Not modified.
//	passphrase - Secret material. Must not be empty.
//	manifest - The package manifest, copied without integrity.
//
// Outputs:
//
//	*model.EncryptedEnvelope - The sealed envelope.
//	error - ErrEmptyPassphrase, or a wrapped cipher/rand failure.
func Seal(plaintext []byte, passphrase *memguard.Enclave, manifest model.Manifest) (*model.EncryptedEnvelope, error) {
	if passphrase == nil {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(passphrase, salt, Iterations)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	marked := manifest.WithoutIntegrity()
	marked.Encryption = &model.EncryptionMarker{
		Enabled: true,
		Format:  model.EncryptionFormat,
	}

	return &model.EncryptedEnvelope{
		Version:   model.EnvelopeVersion,
		Algorithm: "AES-GCM",
		KDF: model.KDFParams{
			Algorithm:  "PBKDF2",
			Hash:       model.ChecksumAlgorithm,
			Iterations: Iterations,
			Salt:       base64.StdEncoding.EncodeToString(salt),
		},
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Manifest:   marked,
		Checksum:   Checksum(plaintext),
	}, nil
}

// SealWithPassword is a convenience wrapper taking the passphrase as a
// plain string. Prefer Seal with an enclave when the secret already
// lives in one.
func SealWithPassword(plaintext []byte, password string, manifest model.Manifest) (*model.EncryptedEnvelope, error) {
	if password == "" {
		return nil, ErrEmptyPassphrase
	}
	return Seal(plaintext, NewPassphrase(password), manifest)
}

// Open decrypts the envelope and returns the plaintext package bytes.
//
// Failure modes:
//
//	ErrWeakKDF - stored iteration count below MinIterations
//	ErrDecryption - wrong passphrase or corrupted ciphertext
//	ErrIntegrity - plaintext checksum disagrees with the stored one
//
// The plaintext checksum is re-verified even though GCM authenticates
// the ciphertext: it catches plaintext substitution above the cipher
// and tampering with the checksum field itself.
func Open(env *model.EncryptedEnvelope, passphrase *memguard.Enclave) ([]byte, error) {
	if passphrase == nil {
		return nil, ErrEmptyPassphrase
	}
	if env.KDF.Iterations < MinIterations {
		return nil, fmt.Errorf("%w: %d", ErrWeakKDF, env.KDF.Iterations)
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed salt: %v", ErrDecryption, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iv: %v", ErrDecryption, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext: %v", ErrDecryption, err)
	}

	gcm, err := newGCM(passphrase, salt, env.KDF.Iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrDecryption, len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failure: wrong key or flipped ciphertext.
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if err := VerifyChecksum(plaintext, env.Checksum); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// OpenWithPassword is a convenience wrapper taking the passphrase as a
// plain string.
func OpenWithPassword(env *model.EncryptedEnvelope, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassphrase
	}
	return Open(env, NewPassphrase(password))
}

// newGCM derives the AES key from the enclave-held passphrase and
// returns a ready AEAD. The locked buffer is destroyed before return.
func newGCM(passphrase *memguard.Enclave, salt []byte, iterations int) (cipher.AEAD, error) {
	buffer, err := passphrase.Open()
	if err != nil {
		return nil, fmt.Errorf("open passphrase enclave: %w", err)
	}
	defer buffer.Destroy()

	if buffer.Size() == 0 {
		return nil, ErrEmptyPassphrase
	}

	key := pbkdf2.Key(buffer.Bytes(), salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
