// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import "errors"

// Order selects the direction of a Range scan.
type Order int

const (
	Ascending Order = iota
	Descending
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrContractNotFound    = errors.New("contract not found")
)

// Storage is the persistent key-value capability consumed by the
// runtime. Get returns database.ErrNotFound when the key is absent.
// Transaction and commit semantics belong to the implementation, not
// to this interface.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Remove(key []byte) error
	// Range iterates entries with start <= key < end in the given
	// order. A nil end means "to the last key".
	Range(start []byte, end []byte, order Order) Iterator
}

// Iterator walks key-value pairs produced by Range. Callers must
// Release when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}
