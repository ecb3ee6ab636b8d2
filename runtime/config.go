// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/bytecodealliance/wasmtime-go/v14"
)

const (
	defaultContractCacheSize = 10 * units.MiB
	defaultMaxWasmStack      = 256 * units.KiB

	// fuelPerGas converts the meter's remaining gas into a wasmtime fuel
	// bound. Fuel is a liveness backstop only; accounting happens on the
	// gas meter.
	fuelPerGas = 100
)

type Config struct {
	wasmConfig *wasmtime.Config

	ContractCacheSize int
	Limits            ResourceLimits
}

// NewConfig returns a deterministic engine configuration: fuel on for
// liveness, epoch interruption for cancellation, cranelift with a fixed
// stack bound.
func NewConfig() *Config {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	cfg.SetEpochInterruption(true)
	cfg.SetStrategy(wasmtime.StrategyCranelift)
	cfg.SetCraneliftOptLevel(wasmtime.OptLevelSpeed)
	cfg.SetMaxWasmStack(defaultMaxWasmStack)
	cfg.SetWasmBulkMemory(true)
	cfg.SetWasmSIMD(false)
	cfg.SetWasmThreads(false)
	cfg.SetWasmReferenceTypes(false)

	return &Config{
		wasmConfig:        cfg,
		ContractCacheSize: defaultContractCacheSize,
		Limits:            DefaultResourceLimits(),
	}
}
