// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"
	"sync"

	"github.com/lattice-labs/wasmhost/codec"
)

const (
	// MaxCallDepth bounds nested inter-contract calls.
	MaxCallDepth = 8

	// ProtocolVersion is matched exactly against the version a message
	// declares.
	ProtocolVersion = 1
)

// CallSafety tracks re-entrant call depth, per-actor monotonic nonces,
// and protocol-version compatibility for one simulated chain instance.
// The four checks are independent: a transfer verifies a nonce, a
// cross-contract call checks depth, a message checks the version.
type CallSafety struct {
	mu     sync.Mutex
	depth  uint32
	nonces map[codec.Address]uint64
}

func NewCallSafety() *CallSafety {
	return &CallSafety{nonces: make(map[codec.Address]uint64)}
}

// EnterCall admits one more nested call, failing when the depth bound
// is already reached.
func (s *CallSafety) EnterCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.depth >= MaxCallDepth {
		return fmt.Errorf("%w: depth %d exceeds maximum %d", ErrMaxCallDepth, s.depth+1, MaxCallDepth)
	}
	s.depth++
	return nil
}

// ExitCall decrements the depth. It must run on every exit path,
// including unwinds, and floors at zero.
func (s *CallSafety) ExitCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.depth > 0 {
		s.depth--
	}
}

func (s *CallSafety) Depth() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.depth
}

// VerifyAndIncrementNonce checks that nonce is exactly the next
// expected value for actor and advances the expectation. A first-seen
// actor starts at zero. A mismatch is rejected, never corrected.
func (s *CallSafety) VerifyAndIncrementNonce(actor codec.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.nonces[actor]
	if nonce != expected {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidNonce, nonce, expected)
	}
	s.nonces[actor] = expected + 1
	return nil
}

// Nonce returns the next expected nonce for actor.
func (s *CallSafety) Nonce(actor codec.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nonces[actor]
}

// CheckProtocolVersion requires an exact match with the running
// protocol constant.
func (s *CallSafety) CheckProtocolVersion(version uint32) error {
	if version != ProtocolVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidProtocolVersion, version, ProtocolVersion)
	}
	return nil
}
