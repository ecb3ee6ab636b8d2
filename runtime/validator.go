// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/bytecodealliance/wasmtime-go/v14"
)

// ResourceLimits bounds the shape of contract modules accepted by the
// runtime. A module is checked once, before it enters the cache.
type ResourceLimits struct {
	// MaxContractSize bounds the raw wasm bytecode in bytes.
	MaxContractSize int

	// MaxImports and MaxExports bound the module's extern surface.
	MaxImports int
	MaxExports int

	// MaxFunctions bounds the function externs, imported plus exported.
	MaxFunctions int

	// MaxInitialMemoryPages and MaxMemoryPages bound a memory's
	// declared minimum and maximum, in 64 KiB pages. A memory declared
	// without a maximum is clamped at run time by the store limiter.
	MaxInitialMemoryPages uint64
	MaxMemoryPages        uint64

	// MaxTableSize bounds the declared minimum of any table extern.
	MaxTableSize uint32
}

func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxContractSize:       1 * units.MiB,
		MaxImports:            100,
		MaxExports:            100,
		MaxFunctions:          1000,
		MaxInitialMemoryPages: 4,
		MaxMemoryPages:        16,
		MaxTableSize:          10_000,
	}
}

// validateModule checks contractBytes and its compiled module against
// the limits. The engine has already validated the wasm itself; this
// pass enforces the runtime's own resource policy.
func validateModule(contractBytes []byte, mod *wasmtime.Module, limits ResourceLimits) error {
	if len(contractBytes) > limits.MaxContractSize {
		return fmt.Errorf("%w: contract size %d exceeds %d", ErrResourceLimit, len(contractBytes), limits.MaxContractSize)
	}

	imports := mod.Imports()
	exports := mod.Exports()
	if len(imports) > limits.MaxImports {
		return fmt.Errorf("%w: %d imports exceeds %d", ErrResourceLimit, len(imports), limits.MaxImports)
	}
	if len(exports) > limits.MaxExports {
		return fmt.Errorf("%w: %d exports exceeds %d", ErrResourceLimit, len(exports), limits.MaxExports)
	}

	functions := 0
	for _, imp := range imports {
		ty := imp.Type()
		if ty.FuncType() != nil {
			functions++
		}
		if err := checkExtern(ty, limits); err != nil {
			return err
		}
	}
	for _, exp := range exports {
		ty := exp.Type()
		if ty.FuncType() != nil {
			functions++
		}
		if err := checkExtern(ty, limits); err != nil {
			return err
		}
	}
	if functions > limits.MaxFunctions {
		return fmt.Errorf("%w: %d functions exceeds %d", ErrResourceLimit, functions, limits.MaxFunctions)
	}
	return nil
}

func checkExtern(ty *wasmtime.ExternType, limits ResourceLimits) error {
	if mem := ty.MemoryType(); mem != nil {
		if mem.Is64() {
			return fmt.Errorf("%w: 64-bit memory", ErrResourceLimit)
		}
		if min := mem.Minimum(); min > limits.MaxInitialMemoryPages {
			return fmt.Errorf("%w: initial memory %d pages exceeds %d", ErrResourceLimit, min, limits.MaxInitialMemoryPages)
		}
		if hasMax, max := mem.Maximum(); hasMax && max > limits.MaxMemoryPages {
			return fmt.Errorf("%w: memory maximum %d pages exceeds %d", ErrResourceLimit, max, limits.MaxMemoryPages)
		}
	}
	if table := ty.TableType(); table != nil {
		if min := table.Minimum(); min > limits.MaxTableSize {
			return fmt.Errorf("%w: table size %d exceeds %d", ErrResourceLimit, min, limits.MaxTableSize)
		}
	}
	return nil
}
