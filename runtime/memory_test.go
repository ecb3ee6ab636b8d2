// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionRoundTrip(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	payload := []byte("the quick brown fox")
	ptr, err := mem.WriteRegion(payload)
	require.NoError(err)

	got, err := mem.ReadRegion(ptr, MaxRegionSize)
	require.NoError(err)
	require.Equal(payload, got)
}

func TestRegionPrefixIsLittleEndian(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	payload := bytes.Repeat([]byte{0xab}, 300)
	ptr, err := mem.WriteRegion(payload)
	require.NoError(err)

	raw, err := mem.read(ptr, regionPrefixSize)
	require.NoError(err)
	require.Equal(uint32(300), binary.LittleEndian.Uint32(raw))
}

func TestRegionEmptyPayload(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	ptr, err := mem.WriteRegion(nil)
	require.NoError(err)

	got, err := mem.ReadRegion(ptr, MaxRegionSize)
	require.NoError(err)
	require.Empty(got)
}

func TestReadRegionRejectsUntrackedPointer(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	_, err := mem.ReadRegion(allocBase+16, MaxRegionSize)
	require.ErrorIs(err, ErrUntrackedPointer)
}

func TestReadRegionRejectsCraftedLengthPrefix(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	ptr, err := mem.WriteRegion([]byte("hello"))
	require.NoError(err)

	// forge a prefix claiming far more bytes than were allocated
	forged := make([]byte, regionPrefixSize)
	binary.LittleEndian.PutUint32(forged, 1<<20)
	require.NoError(mem.write(ptr, forged))

	_, err = mem.ReadRegion(ptr, MaxRegionSize)
	require.ErrorIs(err, ErrInvalidMemorySize)
}

func TestReadRegionHonorsMaxLen(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	ptr, err := mem.WriteRegion(bytes.Repeat([]byte{1}, 64))
	require.NoError(err)

	_, err = mem.ReadRegion(ptr, 16)
	require.ErrorIs(err, ErrRegionTooLarge)
}

func TestAllocZeroSize(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	_, err := mem.Alloc(0)
	require.ErrorIs(err, ErrZeroSizeAllocation)
}

func TestAllocNeverOverlapsAndAligns(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	var prevEnd uint32
	for _, size := range []uint32{1, 7, 8, 9, 1000, 3} {
		ptr, err := mem.Alloc(size)
		require.NoError(err)
		require.Zero(ptr%allocAlign, "pointer %d not aligned", ptr)
		require.GreaterOrEqual(ptr, prevEnd)
		prevEnd = ptr + size
	}
}

func TestAllocGrowsMemory(t *testing.T) {
	require := require.New(t)
	mem, meter := newTestMemory(t, 10_000_000)

	before := mem.size()
	ptr, err := mem.Alloc(uint32(before) + 3*MemoryPageSize)
	require.NoError(err)
	require.Greater(mem.size(), before)

	// the whole block is addressable
	require.NoError(mem.write(ptr, []byte{1, 2, 3}))
	require.NotZero(meter.Used())
}

func TestFreeRemovesPointer(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	ptr, err := mem.WriteRegion([]byte("gone"))
	require.NoError(err)

	_, err = mem.Free(ptr)
	require.NoError(err)

	// the table no longer knows the pointer
	_, err = mem.ReadRegion(ptr, MaxRegionSize)
	require.ErrorIs(err, ErrUntrackedPointer)
}

func TestDoubleFree(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	ptr, err := mem.Alloc(32)
	require.NoError(err)

	_, err = mem.Free(ptr)
	require.NoError(err)
	_, err = mem.Free(ptr)
	require.ErrorIs(err, ErrUntrackedPointer)
}

func TestFreedSpaceIsNotReused(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1_000_000)

	first, err := mem.Alloc(64)
	require.NoError(err)
	_, err = mem.Free(first)
	require.NoError(err)

	second, err := mem.Alloc(64)
	require.NoError(err)
	require.Greater(second, first)
}

func TestWriteRegionTooLarge(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 1<<40)

	_, err := mem.WriteRegion(make([]byte, MaxRegionSize+1))
	require.ErrorIs(err, ErrRegionTooLarge)
}

func TestMemoryChargesGas(t *testing.T) {
	require := require.New(t)
	mem, meter := newTestMemory(t, 1_000_000)

	payload := bytes.Repeat([]byte{9}, 100)
	ptr, err := mem.WriteRegion(payload)
	require.NoError(err)
	written := meter.Used()
	require.Equal(uint64(regionPrefixSize+100)*gasMemoryPerByte, written)

	_, err = mem.ReadRegion(ptr, MaxRegionSize)
	require.NoError(err)
	require.Equal(written+uint64(regionPrefixSize+100)*gasMemoryPerByte, meter.Used())
}

func TestMemoryOutOfGas(t *testing.T) {
	require := require.New(t)
	mem, _ := newTestMemory(t, 3)

	_, err := mem.WriteRegion([]byte("x"))
	require.ErrorIs(err, ErrOutOfGas)
}

func TestPackRegionRoundTrip(t *testing.T) {
	require := require.New(t)

	r := Region{Ptr: 0x12345678, Len: 0x9abcdef0}
	require.Equal(r, unpackRegion(packRegion(r)))
	require.Zero(packRegion(Region{}))
}
