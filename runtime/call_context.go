// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"

	"github.com/lattice-labs/wasmhost/codec"
)

var ErrCannotOverwrite = errors.New("context value already set")

// CallContext is an immutable bundle of call defaults. Every With*
// returns a copy; a zero field in the CallInfo handed to CallContract
// is filled from the defaults, and a default refuses to overwrite a
// field the caller set explicitly.
type CallContext struct {
	r               *WasmRuntime
	defaultCallInfo CallInfo
}

func (c CallContext) CallContract(ctx context.Context, info *CallInfo) ([]byte, error) {
	if err := c.applyDefaults(info); err != nil {
		return nil, err
	}
	return c.r.CallContract(ctx, info)
}

func (c CallContext) applyDefaults(info *CallInfo) error {
	d := c.defaultCallInfo
	if d.Contract != (codec.Address{}) {
		if info.Contract != (codec.Address{}) {
			return ErrCannotOverwrite
		}
		info.Contract = d.Contract
	}
	if d.Actor != (codec.Address{}) {
		if info.Actor != (codec.Address{}) {
			return ErrCannotOverwrite
		}
		info.Actor = d.Actor
	}
	if d.FunctionName != "" {
		if info.FunctionName != "" {
			return ErrCannotOverwrite
		}
		info.FunctionName = d.FunctionName
	}
	if d.Params != nil {
		if info.Params != nil {
			return ErrCannotOverwrite
		}
		info.Params = d.Params
	}
	if d.Gas != 0 && info.Gas == 0 {
		info.Gas = d.Gas
	}
	if d.Height != 0 && info.Height == 0 {
		info.Height = d.Height
	}
	if d.Timestamp != 0 && info.Timestamp == 0 {
		info.Timestamp = d.Timestamp
	}
	if info.ProtocolVersion == 0 {
		if d.ProtocolVersion != 0 {
			info.ProtocolVersion = d.ProtocolVersion
		} else {
			info.ProtocolVersion = ProtocolVersion
		}
	}
	return nil
}

func (c CallContext) WithContract(address codec.Address) CallContext {
	c.defaultCallInfo.Contract = address
	return c
}

func (c CallContext) WithActor(address codec.Address) CallContext {
	c.defaultCallInfo.Actor = address
	return c
}

func (c CallContext) WithFunction(s string) CallContext {
	c.defaultCallInfo.FunctionName = s
	return c
}

func (c CallContext) WithParams(bytes []byte) CallContext {
	c.defaultCallInfo.Params = bytes
	return c
}

func (c CallContext) WithGas(gas uint64) CallContext {
	c.defaultCallInfo.Gas = gas
	return c
}

func (c CallContext) WithHeight(height uint64) CallContext {
	c.defaultCallInfo.Height = height
	return c
}

func (c CallContext) WithTimestamp(ts uint64) CallContext {
	c.defaultCallInfo.Timestamp = ts
	return c
}

func (c CallContext) WithProtocolVersion(v uint32) CallContext {
	c.defaultCallInfo.ProtocolVersion = v
	return c
}
