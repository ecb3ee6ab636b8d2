// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ava-labs/avalanchego/database"
)

var _ Storage = (*Memory)(nil)

// Memory is a map-backed Storage used by tests and the simulator's
// ephemeral mode.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[string(key)] = bytes.Clone(value)
	return nil
}

func (m *Memory) Remove(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, string(key))
	return nil
}

func (m *Memory) Range(start []byte, end []byte, order Order) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.Compare([]byte(k), start) < 0 {
			continue
		}
		if end != nil && bytes.Compare([]byte(k), end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if order == Descending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	entries := make([]kvPair, len(keys))
	for i, k := range keys {
		entries[i] = kvPair{key: []byte(k), value: bytes.Clone(m.data[k])}
	}
	return &sliceIterator{entries: entries, index: -1}
}

type kvPair struct {
	key   []byte
	value []byte
}

type sliceIterator struct {
	entries []kvPair
	index   int
}

func (it *sliceIterator) Next() bool {
	it.index++
	return it.index < len(it.entries)
}

func (it *sliceIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.entries) {
		return nil
	}
	return it.entries[it.index].key
}

func (it *sliceIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.entries) {
		return nil
	}
	return it.entries[it.index].value
}

func (*sliceIterator) Error() error { return nil }

func (*sliceIterator) Release() {}
