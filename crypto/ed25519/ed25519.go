// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ed25519

import (
	"crypto/ed25519"
	"errors"

	"github.com/hdevalence/ed25519consensus"
)

// We use the ZIP-215 specification for ed25519 signature verification
// (https://zips.z.cash/zip-0215) because it provides an explicit validity
// criteria for signatures, supports batch verification, and is broadly
// compatible with signatures produced by almost all ed25519
// implementations.
const (
	PublicKeyLen = ed25519.PublicKeySize
	SignatureLen = ed25519.SignatureSize
)

var (
	ErrMalformedPublicKey = errors.New("malformed ed25519 public key")
	ErrMalformedSignature = errors.New("malformed ed25519 signature")
	ErrBatchShape         = errors.New("batch inputs must have equal lengths")
)

// Verify reports whether sig is a valid signature of msg under pub.
// A malformed public key or signature is reported as an error, distinct
// from a well-formed signature that simply does not verify.
func Verify(msg []byte, pub []byte, sig []byte) (bool, error) {
	if len(pub) != PublicKeyLen {
		return false, ErrMalformedPublicKey
	}
	if len(sig) != SignatureLen {
		return false, ErrMalformedSignature
	}
	return ed25519consensus.Verify(ed25519.PublicKey(pub), msg, sig), nil
}

// BatchVerify reports whether every (msg, pub, sig) triple verifies.
// The three slices must be the same length.
func BatchVerify(msgs [][]byte, pubs [][]byte, sigs [][]byte) (bool, error) {
	if len(msgs) != len(pubs) || len(msgs) != len(sigs) {
		return false, ErrBatchShape
	}
	bv := ed25519consensus.NewBatchVerifier()
	for i, msg := range msgs {
		if len(pubs[i]) != PublicKeyLen {
			return false, ErrMalformedPublicKey
		}
		if len(sigs[i]) != SignatureLen {
			return false, ErrMalformedSignature
		}
		bv.Add(ed25519.PublicKey(pubs[i]), msg, sigs[i])
	}
	return bv.Verify(), nil
}
