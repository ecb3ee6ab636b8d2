// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

// StateManager is the chain-side collaborator: per-contract storage,
// contract bytecode, and the balance ledger. state.Manager implements
// it; tests may substitute their own.
type StateManager interface {
	// ContractStorage returns the contract's scoped key-value state.
	ContractStorage(addr codec.Address) state.Storage
	// GetContractBytes returns the compiled WASM of the contract at addr.
	GetContractBytes(ctx context.Context, addr codec.Address) ([]byte, error)

	GetBalance(ctx context.Context, addr codec.Address) (uint64, error)
	SetBalance(ctx context.Context, addr codec.Address, balance uint64) error
	// Transfer moves amount between accounts, failing with
	// state.ErrInsufficientBalance without touching either balance.
	Transfer(ctx context.Context, from codec.Address, to codec.Address, amount uint64) error
}

// Api is the address-format collaborator.
type Api interface {
	ValidateAddress(human string) error
	CanonicalizeAddress(human string) ([]byte, error)
	HumanizeAddress(canonical []byte) (string, error)
}

// Querier answers opaque read-only queries against the surrounding
// chain.
type Querier interface {
	RawQuery(ctx context.Context, request []byte) ([]byte, error)
}
