// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	debugCost = 100
	abortCost = 100
)

func NewLogModule(r *WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "env",
		HostFunctions: map[string]HostFunction{
			"debug": {BaseCost: debugCost, Function: RegionNoResult(func(callInfo *CallInfo, input []byte) error {
				if !utf8.Valid(input) {
					return ErrInvalidUTF8
				}
				r.log.Debug("contract debug",
					zap.Stringer("contract", callInfo.Contract),
					zap.String("message", string(input)),
				)
				return nil
			})},
			"abort": {BaseCost: abortCost, Function: RegionNoResult(func(callInfo *CallInfo, input []byte) error {
				msg := "invalid utf-8"
				if utf8.Valid(input) {
					msg = string(input)
				}
				r.log.Info("contract abort",
					zap.Stringer("contract", callInfo.Contract),
					zap.String("message", msg),
				)
				return fmt.Errorf("%w: %s", ErrAborted, msg)
			})},
		},
	}
}
