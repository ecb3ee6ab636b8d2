// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

const (
	allocateCost   = 10
	deallocateCost = 10
)

// NewMemoryModule exposes the guest-facing allocator. The host owns the
// bump allocator and the pointer table; the guest only ever sees opaque
// pointers it must hand back to deallocate.
func NewMemoryModule(*WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "env",
		HostFunctions: map[string]HostFunction{
			"allocate": {BaseCost: allocateCost, Function: RawI32ToI32(func(callInfo *CallInfo, size int32) (int32, error) {
				if size <= 0 {
					return 0, ErrZeroSizeAllocation
				}
				ptr, err := callInfo.inst.memory.Alloc(uint32(size))
				if err != nil {
					return 0, err
				}
				return int32(ptr), nil
			})},
			"deallocate": {BaseCost: deallocateCost, Function: RawI32NoResult(func(callInfo *CallInfo, ptr int32) error {
				_, err := callInfo.inst.memory.Free(uint32(ptr))
				return err
			})},
		},
	}
}
