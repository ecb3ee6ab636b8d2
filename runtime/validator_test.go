// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"
)

func compileTestModule(t *testing.T, wat string) ([]byte, *wasmtime.Module) {
	require := require.New(t)
	wasm, err := wasmtime.Wat2Wasm(wat)
	require.NoError(err)
	mod, err := wasmtime.NewModule(wasmtime.NewEngine(), wasm)
	require.NoError(err)
	return wasm, mod
}

func TestValidateModuleLimits(t *testing.T) {
	tests := []struct {
		name  string
		wat   string
		tweak func(*ResourceLimits)
		ok    bool
	}{
		{
			name: "within limits",
			wat:  `(module (memory (export "memory") 2 8) (func (export "run") (param i32) (result i64) (i64.const 0)))`,
			ok:   true,
		},
		{
			name: "no declared memory maximum",
			wat:  `(module (memory (export "memory") 2))`,
			ok:   true,
		},
		{
			name:  "bytecode too large",
			wat:   `(module (memory (export "memory") 2))`,
			tweak: func(l *ResourceLimits) { l.MaxContractSize = 4 },
		},
		{
			name: "initial memory too large",
			wat:  `(module (memory (export "memory") 8))`,
		},
		{
			name: "memory maximum too large",
			wat:  `(module (memory (export "memory") 2 64))`,
		},
		{
			name: "table too large",
			wat:  `(module (table (export "t") 20000 funcref))`,
		},
		{
			name:  "too many exports",
			wat:   `(module (func (export "a")) (func (export "b")))`,
			tweak: func(l *ResourceLimits) { l.MaxExports = 1 },
		},
		{
			name:  "too many imports",
			wat:   `(module (import "env" "a" (func)) (import "env" "b" (func)))`,
			tweak: func(l *ResourceLimits) { l.MaxImports = 1 },
		},
		{
			name:  "too many functions",
			wat:   `(module (import "env" "a" (func)) (func (export "b")) (func (export "c")))`,
			tweak: func(l *ResourceLimits) { l.MaxFunctions = 2 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			wasm, mod := compileTestModule(t, tt.wat)
			limits := DefaultResourceLimits()
			if tt.tweak != nil {
				tt.tweak(&limits)
			}
			err := validateModule(wasm, mod, limits)
			if tt.ok {
				require.NoError(err)
			} else {
				require.ErrorIs(err, ErrResourceLimit)
			}
		})
	}
}

func TestOversizedContractRejectedAtLoad(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, `
(module
  (memory (export "memory") 8)
  (func (export "run") (param i32) (result i64) (i64.const 0)))
`)

	_, _, err := rt.callContract(t, contract, "run", nil, 1_000_000)
	require.ErrorIs(err, ErrResourceLimit)
}
