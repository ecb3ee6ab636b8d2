// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

// A Region is a transient view into guest linear memory: the offset of a
// 4 byte little-endian length prefix followed by that many raw bytes.
// It is a coordinate pair, not owned data.
type Region struct {
	Ptr uint32
	Len uint32
}

// regionPrefixSize is the size of the length prefix preceding the raw
// bytes of every region.
const regionPrefixSize = 4

// packRegion packs a region into the single i64 returned by guest entry
// points: ptr in the high 32 bits, data length in the low 32.
func packRegion(r Region) int64 {
	return int64(uint64(r.Ptr)<<32 | uint64(r.Len))
}

func unpackRegion(v int64) Region {
	return Region{
		Ptr: uint32(uint64(v) >> 32),
		Len: uint32(uint64(v)),
	}
}
