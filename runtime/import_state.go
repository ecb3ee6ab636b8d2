// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/lattice-labs/wasmhost/state"
)

const (
	dbReadCost   = 50
	dbWriteCost  = 100
	dbRemoveCost = 100
	dbScanCost   = 50
	dbNextCost   = 10
)

// scanEntry is one key-value pair yielded by db_next.
type scanEntry struct {
	Key   []byte
	Value []byte
}

func NewStateModule(*WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "state",
		HostFunctions: map[string]HostFunction{
			"db_read": {BaseCost: dbReadCost, Function: RegionToRegion(func(callInfo *CallInfo, key []byte) ([]byte, bool, error) {
				if len(key) > MaxStateKeySize {
					return nil, false, ErrStateKeyTooLarge
				}
				if err := callInfo.meter.ChargeStateLoad(len(key)); err != nil {
					return nil, false, err
				}
				val, err := callInfo.inst.storage.Get(key)
				if err != nil {
					if errors.Is(err, database.ErrNotFound) {
						return nil, false, nil
					}
					return nil, false, err
				}
				return val, true, nil
			})},
			"db_write": {BaseCost: dbWriteCost, Function: RegionPairNoResult(func(callInfo *CallInfo, key []byte, value []byte) error {
				if len(key) > MaxStateKeySize {
					return ErrStateKeyTooLarge
				}
				if len(value) > MaxStateValueSize {
					return ErrStateValueTooLarge
				}
				if err := callInfo.meter.ChargeStateStore(len(key), len(value)); err != nil {
					return err
				}
				return callInfo.inst.storage.Put(key, value)
			})},
			"db_remove": {BaseCost: dbRemoveCost, Function: RegionNoResult(func(callInfo *CallInfo, key []byte) error {
				if len(key) > MaxStateKeySize {
					return ErrStateKeyTooLarge
				}
				if err := callInfo.meter.ChargeStateStore(len(key), 0); err != nil {
					return err
				}
				return callInfo.inst.storage.Remove(key)
			})},
			"db_scan": {BaseCost: dbScanCost, Function: RegionPairWithI32ToI32(func(callInfo *CallInfo, start []byte, end []byte, order int32) (int32, error) {
				if len(start) > MaxStateKeySize || len(end) > MaxStateKeySize {
					return 0, ErrStateKeyTooLarge
				}
				if err := callInfo.meter.ChargeStateLoad(len(start)); err != nil {
					return 0, err
				}
				ord := state.Ascending
				if order != 0 {
					ord = state.Descending
				}
				return callInfo.trackIterator(callInfo.inst.storage.Range(start, end, ord)), nil
			})},
			// db_next yields a borsh-encoded key-value pair per call and
			// zero once the scan is exhausted. Exhaustion releases the
			// handle; further calls on it are fatal.
			"db_next": {BaseCost: dbNextCost, Function: RawI32ToPacked(func(callInfo *CallInfo, handle int32) ([]byte, bool, error) {
				it, ok := callInfo.iterator(handle)
				if !ok {
					return nil, false, fmt.Errorf("%w: %d", ErrUnknownIterator, handle)
				}
				if !it.Next() {
					err := it.Error()
					callInfo.releaseIterator(handle)
					if err != nil {
						return nil, false, err
					}
					return nil, false, nil
				}
				if err := callInfo.meter.ChargeStateLoad(len(it.Key())); err != nil {
					return nil, false, err
				}
				entry, err := serialize(scanEntry{Key: it.Key(), Value: it.Value()})
				if err != nil {
					return nil, false, err
				}
				return entry, true, nil
			})},
		},
	}
}
