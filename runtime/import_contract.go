// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"unicode/utf8"

	"github.com/lattice-labs/wasmhost/codec"
)

const (
	callContractCost = 200
	emitEventCost    = 50
	remainingGasCost = 10
)

// CallErrorCode discriminates the recoverable failure modes a nested
// call reports back to its caller in-band. Anything outside this set
// unwinds the whole call stack instead.
type CallErrorCode uint8

const (
	CallErrorOutOfGas CallErrorCode = iota + 1
	CallErrorNotFound
)

type callContractInput struct {
	Contract     codec.Address
	FunctionName string
	Params       RawBytes
	Gas          uint64
}

func NewContractModule(r *WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "contract",
		HostFunctions: map[string]HostFunction{
			"call_contract": {BaseCost: callContractCost, Function: RegionToRegion(func(callInfo *CallInfo, input []byte) ([]byte, bool, error) {
				call, err := deserialize[callContractInput](input)
				if err != nil {
					return nil, false, err
				}
				if err := callInfo.meter.ChargeContractCall(len(call.Params)); err != nil {
					return nil, false, err
				}
				if err := r.callSafety.EnterCall(); err != nil {
					return nil, false, err
				}
				defer r.callSafety.ExitCall()

				gas := call.Gas
				if remaining := callInfo.meter.Remaining(); gas > remaining {
					gas = remaining
				}
				newInfo := &CallInfo{
					Contract:        call.Contract,
					Actor:           callInfo.Contract,
					FunctionName:    call.FunctionName,
					Params:          call.Params,
					Height:          callInfo.Height,
					Timestamp:       callInfo.Timestamp,
					ProtocolVersion: callInfo.ProtocolVersion,
					meter:           NewGasMeter(gas),
					events:          &EventLog{},
					context:         callInfo.context,
				}
				result, err := r.CallContract(callInfo.context, newInfo)
				// nested gas burns in the caller's meter whether or not
				// the call succeeded
				if chargeErr := callInfo.meter.Charge(newInfo.meter.Used()); chargeErr != nil {
					return nil, false, chargeErr
				}
				var callResult Result[RawBytes, CallErrorCode]
				switch {
				case err == nil:
					if mergeErr := callInfo.events.Merge(newInfo.events); mergeErr != nil {
						return nil, false, mergeErr
					}
					callResult = Ok[RawBytes, CallErrorCode](result)
				case errors.Is(err, ErrOutOfGas):
					callResult = Err[RawBytes, CallErrorCode](CallErrorOutOfGas)
				case errors.Is(err, ErrEntryPointNotFound):
					callResult = Err[RawBytes, CallErrorCode](CallErrorNotFound)
				default:
					return nil, false, err
				}
				serialized, err := serialize(callResult)
				if err != nil {
					return nil, false, err
				}
				return serialized, true, nil
			})},
			"emit_event": {BaseCost: emitEventCost, Function: RegionPairNoResult(func(callInfo *CallInfo, name []byte, data []byte) error {
				if !utf8.Valid(name) {
					return ErrInvalidUTF8
				}
				if len(name) > MaxEventNameLen {
					return ErrEventNameTooLarge
				}
				if len(data) > MaxEventDataSize {
					return ErrEventDataTooLarge
				}
				if err := callInfo.meter.ChargeEvent(len(data)); err != nil {
					return err
				}
				return callInfo.events.Emit(Event{
					Contract: callInfo.Contract,
					Name:     string(name),
					Data:     data,
				})
			})},
			"remaining_gas": {BaseCost: remainingGasCost, Function: NoInputToI64(func(callInfo *CallInfo) (int64, error) {
				return int64(callInfo.meter.Remaining()), nil
			})},
		},
	}
}
