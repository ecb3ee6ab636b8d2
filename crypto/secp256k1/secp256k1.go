// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package secp256k1

import (
	"crypto/sha256"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/secp256k1/ecdsa"
	dsecp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	decdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	PublicKeyLen = 64 // uncompressed point, no format byte
	SignatureLen = 64 // r || s

	// compactSigLen is the recoverable wire form: one recovery byte
	// followed by r || s.
	compactSigLen = 65
	// compactRecoveryOffset is added to the recovery id in the compact
	// form's first byte.
	compactRecoveryOffset = 27

	maxRecoveryID = 3
)

var (
	ErrMalformedPublicKey = errors.New("malformed secp256k1 public key")
	ErrMalformedSignature = errors.New("malformed secp256k1 signature")
	ErrInvalidRecoveryID  = errors.New("invalid secp256k1 recovery id")
	ErrRecoveryFailed     = errors.New("secp256k1 pubkey recovery failed")
)

// Verify reports whether sig is a valid signature of msg under pub.
// Malformed inputs are reported as errors, distinct from verification
// failure.
func Verify(msg []byte, pub []byte, sig []byte) (bool, error) {
	if len(pub) != PublicKeyLen {
		return false, ErrMalformedPublicKey
	}
	if len(sig) != SignatureLen {
		return false, ErrMalformedSignature
	}
	publicKey := ecdsa.PublicKey{}
	if _, err := publicKey.SetBytes(pub); err != nil {
		return false, ErrMalformedPublicKey
	}
	ok, err := publicKey.Verify(sig, msg, sha256.New())
	if err != nil {
		return false, ErrMalformedSignature
	}
	return ok, nil
}

// RecoverPublicKey recovers the uncompressed (65 byte, 0x04-prefixed)
// public key that produced the 64 byte signature over the 32 byte
// message hash. recoveryID selects among the candidate points.
func RecoverPublicKey(hash []byte, sig []byte, recoveryID byte) ([]byte, error) {
	if len(sig) != SignatureLen {
		return nil, ErrMalformedSignature
	}
	if recoveryID > maxRecoveryID {
		return nil, ErrInvalidRecoveryID
	}
	compact := make([]byte, compactSigLen)
	compact[0] = compactRecoveryOffset + recoveryID
	copy(compact[1:], sig)
	pub, _, err := decdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, ErrRecoveryFailed
	}
	return pub.SerializeUncompressed(), nil
}

// GeneratePrivateKey returns a fresh key for tests and tooling.
func GeneratePrivateKey() (*dsecp.PrivateKey, error) {
	return dsecp.GeneratePrivateKey()
}
