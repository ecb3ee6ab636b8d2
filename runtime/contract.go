// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

const MemoryName = "memory"

type CallInfo struct {
	// the contract being called
	Contract codec.Address

	// the address that initiated this call: the transaction signer at
	// the top level, the calling contract for nested calls
	Actor codec.Address

	// the name of the exported function to invoke
	FunctionName string

	// the serialized parameters passed to the entry point
	Params []byte

	// the gas budget for this call
	Gas uint64

	Height    uint64
	Timestamp uint64

	// the caller's protocol version, checked against the host's before
	// any wasm runs
	ProtocolVersion uint32

	meter   *GasMeter
	events  *EventLog
	inst    *ContractInstance
	context context.Context

	// live scan iterators handed to the guest, keyed by handle
	iterators   map[int32]state.Iterator
	iteratorSeq int32

	// hostErr preserves the typed error behind a host-function trap;
	// traps stringify and would otherwise lose errors.Is identity
	hostErr error
}

func (c *CallInfo) ctx() context.Context {
	if c.context == nil {
		return context.Background()
	}
	return c.context
}

// trap records err as this call's host error and converts it for the
// wasm boundary. The first error wins; later ones are side effects of
// unwinding.
func (c *CallInfo) trap(err error) *wasmtime.Trap {
	if c.hostErr == nil {
		c.hostErr = err
	}
	return convertToTrap(err)
}

func (c *CallInfo) Meter() *GasMeter { return c.meter }

// trackIterator registers a live scan iterator and returns its handle.
// Handles start at 1; zero is the guest-visible "no iterator" value.
func (c *CallInfo) trackIterator(it state.Iterator) int32 {
	if c.iterators == nil {
		c.iterators = make(map[int32]state.Iterator)
	}
	c.iteratorSeq++
	c.iterators[c.iteratorSeq] = it
	return c.iteratorSeq
}

func (c *CallInfo) iterator(handle int32) (state.Iterator, bool) {
	it, ok := c.iterators[handle]
	return it, ok
}

func (c *CallInfo) releaseIterator(handle int32) {
	if it, ok := c.iterators[handle]; ok {
		it.Release()
		delete(c.iterators, handle)
	}
}

// releaseIterators drops every iterator the guest left open. Runs when
// the call finishes regardless of outcome.
func (c *CallInfo) releaseIterators() {
	for handle, it := range c.iterators {
		it.Release()
		delete(c.iterators, handle)
	}
}

func (c *CallInfo) Events() []Event {
	if c.events == nil {
		return nil
	}
	return c.events.Events()
}

type ContractInstance struct {
	inst    *wasmtime.Instance
	store   *wasmtime.Store
	memory  *Memory
	storage state.Storage
}

func (p *ContractInstance) call(callInfo *CallInfo) ([]byte, error) {
	// fuel is a liveness bound scaled off the gas budget, not the
	// accounting mechanism
	if err := p.store.AddFuel(callInfo.meter.Remaining()*fuelPerGas + fuelPerGas); err != nil {
		return nil, err
	}

	function := p.inst.GetFunc(p.store, callInfo.FunctionName)
	if function == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, callInfo.FunctionName)
	}
	if !validEntryPoint(function.Type(p.store)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntryPoint, callInfo.FunctionName)
	}

	paramsPtr, err := p.memory.WriteRegion(callInfo.Params)
	if err != nil {
		return nil, err
	}

	result, err := function.Call(p.store, int32(paramsPtr))
	if err != nil {
		if callInfo.hostErr != nil {
			return nil, callInfo.hostErr
		}
		if trapErr, ok := extractTrapError(err); ok {
			if trapErr == ErrOutOfGas {
				callInfo.meter.ConsumeAll()
			}
			return nil, fmt.Errorf("%w: %s", trapErr, callInfo.FunctionName)
		}
		return nil, err
	}

	packed, ok := result.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrInvalidEntryPoint, callInfo.FunctionName, result)
	}
	if packed == 0 {
		return nil, nil
	}
	region := unpackRegion(packed)
	output, err := p.memory.ReadRegion(region.Ptr, MaxRegionSize)
	if err != nil {
		return nil, err
	}
	if uint32(len(output)) != region.Len {
		return nil, fmt.Errorf("%w: result region length mismatch", ErrExecution)
	}
	return output, nil
}

// validEntryPoint requires the fixed guest ABI (i32) -> (i64): a region
// pointer in, a packed region out.
func validEntryPoint(ty *wasmtime.FuncType) bool {
	params := ty.Params()
	results := ty.Results()
	if len(params) != 1 || len(results) != 1 {
		return false
	}
	return params[0].Kind() == wasmtime.KindI32 && results[0].Kind() == wasmtime.KindI64
}
