// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"

	"github.com/bytecodealliance/wasmtime-go/v14"
)

var (
	// fatal: terminates the current execution.
	ErrOutOfGas              = errors.New("out of gas")
	ErrMaxCallDepth          = errors.New("max call depth exceeded")
	ErrUntrackedPointer      = errors.New("untracked pointer")
	ErrDuplicatePointer      = errors.New("pointer already tracked")
	ErrZeroSizeAllocation    = errors.New("zero size allocation")
	ErrRegionTooLarge        = errors.New("region length exceeds maximum")
	ErrInvalidMemorySize     = errors.New("invalid memory size")
	ErrMemoryGrewTooLarge    = errors.New("memory grow failed")
	ErrMissingExportedMemory = errors.New("missing exported memory")
	ErrInvalidUTF8           = errors.New("invalid utf-8")
	ErrTooManyEvents         = errors.New("too many events emitted")
	ErrEventNameTooLarge     = errors.New("event name too large")
	ErrEventDataTooLarge     = errors.New("event data too large")
	ErrAborted               = errors.New("contract aborted")
	ErrUnknownIterator       = errors.New("unknown iterator handle")
	ErrQueryFailed           = errors.New("chain query failed")
	ErrExecution             = errors.New("execution failed")

	// rejected-but-clean: typed errors returned to the caller.
	ErrInvalidNonce           = errors.New("invalid nonce")
	ErrInvalidProtocolVersion = errors.New("invalid protocol version")
	ErrEntryPointNotFound     = errors.New("entry point not found")
	ErrInvalidEntryPoint      = errors.New("invalid entry point signature")
	ErrStateKeyTooLarge       = errors.New("state key too large")
	ErrStateValueTooLarge     = errors.New("state value too large")
	ErrResourceLimit          = errors.New("module exceeds resource limits")
)

func convertToTrap(err error) *wasmtime.Trap {
	if err == nil {
		return nil
	}
	var t *wasmtime.Trap
	switch {
	case errors.As(err, &t):
		return t
	default:
		return wasmtime.NewTrap(err.Error())
	}
}

// extractTrapError maps a wasmtime trap raised during a guest call to
// the runtime's error taxonomy. Fuel exhaustion becomes ErrOutOfGas;
// everything else is a fatal ErrExecution.
func extractTrapError(err error) (error, bool) {
	var trap *wasmtime.Trap
	if !errors.As(err, &trap) {
		return nil, false
	}
	code := trap.Code()
	if code != nil && *code == wasmtime.OutOfFuel {
		return ErrOutOfGas, true
	}
	return ErrExecution, true
}
