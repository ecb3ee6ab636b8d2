// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/lattice-labs/wasmhost/codec"
)

const (
	contractPrefix = 0x0
	balancePrefix  = 0x1
	storagePrefix  = 0x2
)

// Manager partitions a single Storage into per-contract state, account
// balances, and contract bytecode.
//
// [contractPrefix] + [address] -> wasm bytes
// [balancePrefix]  + [address] -> 8 byte big-endian balance
// [storagePrefix]  + [address] + [key] -> value
type Manager struct {
	store Storage
}

func NewManager(store Storage) *Manager {
	return &Manager{store: store}
}

func contractKey(addr codec.Address) []byte {
	k := make([]byte, 1+codec.AddressLen)
	k[0] = contractPrefix
	copy(k[1:], addr[:])
	return k
}

func balanceKey(addr codec.Address) []byte {
	k := make([]byte, 1+codec.AddressLen)
	k[0] = balancePrefix
	copy(k[1:], addr[:])
	return k
}

// storageKey returns the key used to store a value in the contract's
// namespace: [storagePrefix] + [address] + [key].
func storageKey(addr codec.Address, key []byte) []byte {
	k := make([]byte, 1+codec.AddressLen+len(key))
	k[0] = storagePrefix
	copy(k[1:], addr[:])
	copy(k[1+codec.AddressLen:], key)
	return k
}

// ContractStorage returns the contract's scoped view of the underlying
// store.
func (m *Manager) ContractStorage(addr codec.Address) Storage {
	return &scoped{store: m.store, addr: addr}
}

func (m *Manager) GetContractBytes(_ context.Context, addr codec.Address) ([]byte, error) {
	b, err := m.store.Get(contractKey(addr))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotFound, addr)
		}
		return nil, err
	}
	return b, nil
}

func (m *Manager) SetContractBytes(_ context.Context, addr codec.Address, wasmBytes []byte) error {
	return m.store.Put(contractKey(addr), wasmBytes)
}

func (m *Manager) GetBalance(_ context.Context, addr codec.Address) (uint64, error) {
	b, err := m.store.Get(balanceKey(addr))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (m *Manager) SetBalance(_ context.Context, addr codec.Address, balance uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, balance)
	return m.store.Put(balanceKey(addr), b)
}

func (m *Manager) Transfer(ctx context.Context, from codec.Address, to codec.Address, amount uint64) error {
	fromBalance, err := m.GetBalance(ctx, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := m.GetBalance(ctx, to)
	if err != nil {
		return err
	}
	if toBalance+amount < toBalance {
		return ErrBalanceOverflow
	}
	if err := m.SetBalance(ctx, from, fromBalance-amount); err != nil {
		return err
	}
	return m.SetBalance(ctx, to, toBalance+amount)
}

var _ Storage = (*scoped)(nil)

type scoped struct {
	store Storage
	addr  codec.Address
}

func (s *scoped) Get(key []byte) ([]byte, error) {
	return s.store.Get(storageKey(s.addr, key))
}

func (s *scoped) Put(key []byte, value []byte) error {
	return s.store.Put(storageKey(s.addr, key), value)
}

func (s *scoped) Remove(key []byte) error {
	return s.store.Remove(storageKey(s.addr, key))
}

func (s *scoped) Range(start []byte, end []byte, order Order) Iterator {
	scopedEnd := storageKey(s.addr, end)
	if end == nil {
		// one past the last key in this contract's namespace
		scopedEnd = storageKey(s.addr, nil)
		scopedEnd = nextPrefix(scopedEnd)
	}
	return &scopedIterator{
		inner:  s.store.Range(storageKey(s.addr, start), scopedEnd, order),
		prefix: 1 + codec.AddressLen,
	}
}

// nextPrefix returns the smallest byte string greater than every string
// prefixed by b.
func nextPrefix(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type scopedIterator struct {
	inner  Iterator
	prefix int
}

func (it *scopedIterator) Next() bool { return it.inner.Next() }

func (it *scopedIterator) Key() []byte {
	k := it.inner.Key()
	if len(k) < it.prefix {
		return nil
	}
	return k[it.prefix:]
}

func (it *scopedIterator) Value() []byte { return it.inner.Value() }
func (it *scopedIterator) Error() error  { return it.inner.Error() }
func (it *scopedIterator) Release()      { it.inner.Release() }
