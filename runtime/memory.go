// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"encoding/binary"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v14"
)

const (
	// MemoryPageSize is the WASM linear memory page size.
	MemoryPageSize = 64 * 1024

	// allocBase is the first offset handed out by the bump allocator,
	// leaving the guest's first page (data segments, shadow stack) alone.
	allocBase = 64 * 1024

	allocAlign = 8
)

// Memory bridges host and guest across one instance's linear memory.
// It owns the bump allocator and the pointer table: every region that
// crosses the boundary is allocated here and every dereference or free
// is checked against the table, so use-after-free and double-free
// become detectable errors instead of memory corruption.
//
// One Memory per store; stores never share a bridge.
type Memory struct {
	mem   *wasmtime.Memory
	store wasmtime.Storelike
	meter *GasMeter

	nextPtr uint32
	// regions maps a live pointer to its allocated size.
	regions map[uint32]uint32
}

func newMemory(mem *wasmtime.Memory, store wasmtime.Storelike, meter *GasMeter) *Memory {
	return &Memory{
		mem:     mem,
		store:   store,
		meter:   meter,
		nextPtr: allocBase,
		regions: make(map[uint32]uint32),
	}
}

func (m *Memory) size() uint64 {
	return uint64(m.mem.DataSize(m.store))
}

// Alloc hands out a fresh non-overlapping block of the given size and
// records it in the pointer table. The high-water mark advances with
// 8 byte alignment and the memory grows by the minimum number of pages
// needed. Freed space is never reused; the allocator's scope is one
// execution. Zero-size allocation is a usage error.
func (m *Memory) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, ErrZeroSizeAllocation
	}
	ptr := m.nextPtr
	end := uint64(ptr) + uint64(size)
	if end >= 1<<32 {
		return 0, fmt.Errorf("%w: allocation overflows address space", ErrInvalidMemorySize)
	}
	if err := m.ensure(end); err != nil {
		return 0, err
	}
	next := (end + allocAlign - 1) &^ (allocAlign - 1)
	if next > 1<<32 {
		next = 1 << 32
	}
	m.nextPtr = uint32(next)

	if _, ok := m.regions[ptr]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicatePointer, ptr)
	}
	m.regions[ptr] = size
	return ptr, nil
}

// Free removes ptr from the pointer table. Freeing an untracked pointer
// is a fatal error, not a no-op.
func (m *Memory) Free(ptr uint32) (uint32, error) {
	size, ok := m.regions[ptr]
	if !ok {
		return 0, fmt.Errorf("%w: free of %d", ErrUntrackedPointer, ptr)
	}
	delete(m.regions, ptr)
	return size, nil
}

// lookup returns the allocated size behind a live pointer.
func (m *Memory) lookup(ptr uint32) (uint32, error) {
	size, ok := m.regions[ptr]
	if !ok {
		return 0, fmt.Errorf("%w: dereference of %d", ErrUntrackedPointer, ptr)
	}
	return size, nil
}

// ensure grows the linear memory so that offsets below end are
// addressable. Growth failure is out-of-memory, fatal for the call.
func (m *Memory) ensure(end uint64) error {
	size := m.size()
	if end <= size {
		return nil
	}
	delta := (end - size + MemoryPageSize - 1) / MemoryPageSize
	if _, err := m.mem.Grow(m.store, delta); err != nil {
		return fmt.Errorf("%w: %s", ErrMemoryGrewTooLarge, err)
	}
	return nil
}

// read copies length bytes out of guest memory, charging memory gas and
// bounds-checking before touching the raw data.
func (m *Memory) read(offset uint32, length uint32) ([]byte, error) {
	if err := m.meter.ChargeMemory(int(length)); err != nil {
		return nil, err
	}
	if uint64(offset)+uint64(length) > m.size() {
		return nil, fmt.Errorf("%w: read [%d, %d)", ErrInvalidMemorySize, offset, uint64(offset)+uint64(length))
	}
	data := m.mem.UnsafeData(m.store)
	buf := make([]byte, length)
	copy(buf, data[offset:uint64(offset)+uint64(length)])
	return buf, nil
}

// write copies buf into guest memory, charging memory gas and
// bounds-checking before touching the raw data.
func (m *Memory) write(offset uint32, buf []byte) error {
	if err := m.meter.ChargeMemory(len(buf)); err != nil {
		return err
	}
	if uint64(offset)+uint64(len(buf)) > m.size() {
		return fmt.Errorf("%w: write [%d, %d)", ErrInvalidMemorySize, offset, uint64(offset)+uint64(len(buf)))
	}
	data := m.mem.UnsafeData(m.store)
	copy(data[offset:], buf)
	return nil
}

// WriteRegion encodes buf as a length-prefixed region at a freshly
// allocated location and returns its pointer.
func (m *Memory) WriteRegion(buf []byte) (uint32, error) {
	if len(buf) > MaxRegionSize {
		return 0, ErrRegionTooLarge
	}
	ptr, err := m.Alloc(uint32(regionPrefixSize + len(buf)))
	if err != nil {
		return 0, err
	}
	prefix := make([]byte, regionPrefixSize)
	binary.LittleEndian.PutUint32(prefix, uint32(len(buf)))
	if err := m.write(ptr, prefix); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return ptr, nil
	}
	if err := m.write(ptr+regionPrefixSize, buf); err != nil {
		return 0, err
	}
	return ptr, nil
}

// ReadRegion decodes the region at ptr. The pointer must be live in
// the table, and the decoded length must not exceed maxLen; a crafted
// prefix is rejected before any raw copy so it can never escape to a
// linear-memory bounds trap.
func (m *Memory) ReadRegion(ptr uint32, maxLen uint32) ([]byte, error) {
	size, err := m.lookup(ptr)
	if err != nil {
		return nil, err
	}
	prefix, err := m.read(ptr, regionPrefixSize)
	if err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(prefix)
	if length > maxLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrRegionTooLarge, length, maxLen)
	}
	if length+regionPrefixSize > size {
		return nil, fmt.Errorf("%w: region length %d exceeds allocation %d", ErrInvalidMemorySize, length, size)
	}
	if length == 0 {
		return nil, nil
	}
	return m.read(ptr+regionPrefixSize, length)
}
