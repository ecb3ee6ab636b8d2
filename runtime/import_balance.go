// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

const (
	getBalanceCost = 100
	setBalanceCost = 100
	transferCost   = 200

	transferOK                = 0
	transferInsufficientFunds = 1
	transferInvalidNonce      = 2
)

type transferInput struct {
	To     codec.Address
	Amount uint64
	Nonce  uint64
}

func NewBalanceModule(r *WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "balance",
		HostFunctions: map[string]HostFunction{
			"get_balance": {BaseCost: getBalanceCost, Function: RegionToI64(func(callInfo *CallInfo, input []byte) (int64, error) {
				addr, err := codec.ToAddress(input)
				if err != nil {
					return 0, err
				}
				balance, err := r.stateManager.GetBalance(callInfo.ctx(), addr)
				if err != nil {
					return 0, err
				}
				return int64(balance), nil
			})},
			"set_balance": {BaseCost: setBalanceCost, Function: RegionWithI64(func(callInfo *CallInfo, input []byte, amount int64) error {
				addr, err := codec.ToAddress(input)
				if err != nil {
					return err
				}
				return r.stateManager.SetBalance(callInfo.ctx(), addr, uint64(amount))
			})},
			"transfer": {BaseCost: transferCost, Function: RegionToStatus(func(callInfo *CallInfo, input []byte) (int32, error) {
				transfer, err := deserialize[transferInput](input)
				if err != nil {
					return 0, err
				}
				if err := r.callSafety.VerifyAndIncrementNonce(callInfo.Contract, transfer.Nonce); err != nil {
					return transferInvalidNonce, nil
				}
				err = r.stateManager.Transfer(callInfo.ctx(), callInfo.Contract, transfer.To, transfer.Amount)
				switch {
				case err == nil:
					return transferOK, nil
				case errors.Is(err, state.ErrInsufficientBalance):
					return transferInsufficientFunds, nil
				default:
					return 0, err
				}
			})},
		},
	}
}
