// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"

	"github.com/ava-labs/avalanchego/database"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

// Context is the host-side view of one contract's execution
// environment. It offers the same operations the wasm imports do,
// without crossing the wasm boundary, so embedders and tooling can act
// on a contract's behalf. Every operation charges the context's meter
// at the same rate the corresponding wasm import would.
type Context struct {
	r        *WasmRuntime
	contract codec.Address
	actor    codec.Address

	height    uint64
	timestamp uint64

	meter   *GasMeter
	storage state.Storage
	events  *EventLog
}

func (r *WasmRuntime) NewContext(contract codec.Address, actor codec.Address, height uint64, timestamp uint64, gas uint64) *Context {
	return &Context{
		r:         r,
		contract:  contract,
		actor:     actor,
		height:    height,
		timestamp: timestamp,
		meter:     NewGasMeter(gas),
		storage:   r.stateManager.ContractStorage(contract),
		events:    &EventLog{},
	}
}

func (c *Context) Contract() codec.Address { return c.contract }
func (c *Context) Actor() codec.Address    { return c.actor }
func (c *Context) Height() uint64          { return c.height }
func (c *Context) Timestamp() uint64       { return c.timestamp }
func (c *Context) Meter() *GasMeter        { return c.meter }

func (c *Context) GetState(key []byte) ([]byte, error) {
	if len(key) > MaxStateKeySize {
		return nil, ErrStateKeyTooLarge
	}
	if err := c.meter.Charge(dbReadCost); err != nil {
		return nil, err
	}
	if err := c.meter.ChargeStateLoad(len(key)); err != nil {
		return nil, err
	}
	return c.storage.Get(key)
}

func (c *Context) StoreState(key []byte, value []byte) error {
	if len(key) > MaxStateKeySize {
		return ErrStateKeyTooLarge
	}
	if len(value) > MaxStateValueSize {
		return ErrStateValueTooLarge
	}
	if err := c.meter.Charge(dbWriteCost); err != nil {
		return err
	}
	if err := c.meter.ChargeStateStore(len(key), len(value)); err != nil {
		return err
	}
	return c.storage.Put(key, value)
}

// DeleteState removes key and returns the value it held, or nil when
// the key was absent.
func (c *Context) DeleteState(key []byte) ([]byte, error) {
	if len(key) > MaxStateKeySize {
		return nil, ErrStateKeyTooLarge
	}
	if err := c.meter.Charge(dbRemoveCost); err != nil {
		return nil, err
	}
	if err := c.meter.ChargeStateLoad(len(key)); err != nil {
		return nil, err
	}
	prev, err := c.storage.Get(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := c.meter.ChargeStateStore(len(key), 0); err != nil {
		return nil, err
	}
	if err := c.storage.Remove(key); err != nil {
		return nil, err
	}
	return prev, nil
}

func (c *Context) GetBalance(ctx context.Context, addr codec.Address) (uint64, error) {
	if err := c.meter.Charge(getBalanceCost); err != nil {
		return 0, err
	}
	return c.r.stateManager.GetBalance(ctx, addr)
}

// Send transfers from this context's contract. Each send consumes the
// contract's next nonce.
func (c *Context) Send(ctx context.Context, to codec.Address, amount uint64) error {
	if err := c.meter.Charge(transferCost); err != nil {
		return err
	}
	nonce := c.r.callSafety.Nonce(c.contract)
	if err := c.r.callSafety.VerifyAndIncrementNonce(c.contract, nonce); err != nil {
		return err
	}
	return c.r.stateManager.Transfer(ctx, c.contract, to, amount)
}

// CallContract invokes another contract with this context's contract as
// the actor. The callee runs against a sub-meter carved out of this
// context's remainder; whatever it burns is charged here whether or not
// the call succeeded.
func (c *Context) CallContract(ctx context.Context, contract codec.Address, function string, params []byte, gas uint64) ([]byte, error) {
	if err := c.meter.Charge(callContractCost); err != nil {
		return nil, err
	}
	if err := c.meter.ChargeContractCall(len(params)); err != nil {
		return nil, err
	}
	if remaining := c.meter.Remaining(); gas > remaining {
		gas = remaining
	}
	info := &CallInfo{
		Contract:        contract,
		Actor:           c.contract,
		FunctionName:    function,
		Params:          params,
		Height:          c.height,
		Timestamp:       c.timestamp,
		ProtocolVersion: ProtocolVersion,
		meter:           NewGasMeter(gas),
	}
	result, err := c.r.CallContract(ctx, info)
	if chargeErr := c.meter.Charge(info.meter.Used()); chargeErr != nil {
		return nil, chargeErr
	}
	if err != nil {
		return nil, err
	}
	if err := c.events.Merge(info.events); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Context) Emit(name string, data []byte) error {
	if len(name) > MaxEventNameLen {
		return ErrEventNameTooLarge
	}
	if len(data) > MaxEventDataSize {
		return ErrEventDataTooLarge
	}
	if err := c.meter.Charge(emitEventCost); err != nil {
		return err
	}
	if err := c.meter.ChargeEvent(len(data)); err != nil {
		return err
	}
	return c.events.Emit(Event{Contract: c.contract, Name: name, Data: data})
}

func (c *Context) Events() []Event { return c.events.Events() }
