// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"
	"unicode/utf8"
)

const (
	addrValidateCost     = 50
	addrCanonicalizeCost = 50
	addrHumanizeCost     = 50
	queryChainCost       = 100

	addrValid   = 0
	addrInvalid = 1
)

func NewApiModule(r *WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "env",
		HostFunctions: map[string]HostFunction{
			"addr_validate": {BaseCost: addrValidateCost, Function: RegionToStatus(func(_ *CallInfo, input []byte) (int32, error) {
				if !utf8.Valid(input) {
					return 0, ErrInvalidUTF8
				}
				if err := r.api.ValidateAddress(string(input)); err != nil {
					return addrInvalid, nil
				}
				return addrValid, nil
			})},
			"addr_canonicalize": {BaseCost: addrCanonicalizeCost, Function: RegionToRegion(func(_ *CallInfo, input []byte) ([]byte, bool, error) {
				if !utf8.Valid(input) {
					return nil, false, ErrInvalidUTF8
				}
				canonical, err := r.api.CanonicalizeAddress(string(input))
				if err != nil {
					return nil, false, nil
				}
				return canonical, true, nil
			})},
			"addr_humanize": {BaseCost: addrHumanizeCost, Function: RegionToRegion(func(_ *CallInfo, input []byte) ([]byte, bool, error) {
				human, err := r.api.HumanizeAddress(input)
				if err != nil {
					return nil, false, nil
				}
				return []byte(human), true, nil
			})},
			"query_chain": {BaseCost: queryChainCost, Function: RegionToRegion(func(callInfo *CallInfo, input []byte) ([]byte, bool, error) {
				resp, err := r.querier.RawQuery(callInfo.ctx(), input)
				if err != nil {
					return nil, false, fmt.Errorf("%w: %s", ErrQueryFailed, err)
				}
				return resp, true, nil
			})},
		},
	}
}
