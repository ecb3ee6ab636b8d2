// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

// Cost model: every host operation charges a fixed base plus a rate per
// payload byte. The constants are tunable; the base + linear shape is
// the contract.
const (
	gasMemoryPerByte       = 1
	gasStateStorePerByte   = 10
	gasStateLoadPerByte    = 5
	gasContractCallBase    = 100
	gasContractCallPerByte = 1
	gasEventBase           = 10
	gasEventPerByte        = 1
	gasCryptoBase          = 50
	gasCryptoPerByte       = 2

	MaxStateKeySize   = 1024
	MaxStateValueSize = 1024 * 1024
	MaxRegionSize     = 1024 * 1024
	MaxEventNameLen   = 64
	MaxEventDataSize  = 1024 * 1024
	MaxEventsPerCall  = 100
)

// GasMeter is a monotonically charged counter with a ceiling. It lives
// for one top-level execution; nested contract calls run against
// sub-meters carved out of the caller's remainder so a callee can never
// outspend its caller.
type GasMeter struct {
	used  uint64
	limit uint64
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Charge deducts amount, failing with ErrOutOfGas if it would cross the
// ceiling. A failed charge leaves the meter untouched.
func (g *GasMeter) Charge(amount uint64) error {
	if amount > g.limit-g.used {
		return ErrOutOfGas
	}
	g.used += amount
	return nil
}

func (g *GasMeter) Used() uint64 { return g.used }

// ConsumeAll drains the meter. Used when the wasm side exhausts its
// fuel bound, which has no per-operation granularity to report.
func (g *GasMeter) ConsumeAll() { g.used = g.limit }

func (g *GasMeter) Remaining() uint64 { return g.limit - g.used }

func (g *GasMeter) ChargeMemory(bytes int) error {
	return g.Charge(uint64(bytes) * gasMemoryPerByte)
}

func (g *GasMeter) ChargeStateStore(keySize int, valueSize int) error {
	if keySize > MaxStateKeySize {
		return ErrStateKeyTooLarge
	}
	if valueSize > MaxStateValueSize {
		return ErrStateValueTooLarge
	}
	return g.Charge(uint64(keySize)*gasStateStorePerByte + uint64(valueSize)*gasStateStorePerByte)
}

func (g *GasMeter) ChargeStateLoad(keySize int) error {
	if keySize > MaxStateKeySize {
		return ErrStateKeyTooLarge
	}
	return g.Charge(uint64(keySize) * gasStateLoadPerByte)
}

func (g *GasMeter) ChargeContractCall(argsSize int) error {
	return g.Charge(gasContractCallBase + uint64(argsSize)*gasContractCallPerByte)
}

func (g *GasMeter) ChargeEvent(dataSize int) error {
	return g.Charge(gasEventBase + uint64(dataSize)*gasEventPerByte)
}

func (g *GasMeter) ChargeCrypto(inputSize int) error {
	return g.Charge(gasCryptoBase + uint64(inputSize)*gasCryptoPerByte)
}
