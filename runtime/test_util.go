// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

type testApi struct{}

func (testApi) ValidateAddress(human string) error {
	_, err := testCanonicalize(human)
	return err
}

func (testApi) CanonicalizeAddress(human string) ([]byte, error) {
	return testCanonicalize(human)
}

func (testApi) HumanizeAddress(canonical []byte) (string, error) {
	if len(canonical) != codec.AddressLen {
		return "", codec.ErrBadAddressLength
	}
	return "test1" + hex.EncodeToString(canonical), nil
}

func testCanonicalize(human string) ([]byte, error) {
	if len(human) < 5 || human[:5] != "test1" {
		return nil, fmt.Errorf("missing test1 prefix: %q", human)
	}
	raw, err := hex.DecodeString(human[5:])
	if err != nil {
		return nil, err
	}
	if len(raw) != codec.AddressLen {
		return nil, codec.ErrBadAddressLength
	}
	return raw, nil
}

type testQuerier struct {
	response []byte
	err      error
}

func (q *testQuerier) RawQuery(context.Context, []byte) ([]byte, error) {
	return q.response, q.err
}

type testRuntime struct {
	runtime *WasmRuntime
	manager *state.Manager
	querier *testQuerier
}

func newTestRuntime() *testRuntime {
	manager := state.NewManager(state.NewMemory())
	querier := &testQuerier{}
	return &testRuntime{
		runtime: NewRuntime(NewConfig(), logging.NoLog{}, manager, testApi{}, querier),
		manager: manager,
		querier: querier,
	}
}

// testAddress returns a deterministic address filled with b.
func testAddress(b byte) codec.Address {
	var addr codec.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

// registerContract compiles wat and stores the wasm under addr.
func (rt *testRuntime) registerContract(t *testing.T, addr codec.Address, wat string) {
	require := require.New(t)
	wasm, err := wasmtime.Wat2Wasm(wat)
	require.NoError(err)
	require.NoError(rt.manager.SetContractBytes(context.Background(), addr, wasm))
}

func (rt *testRuntime) callContract(t *testing.T, contract codec.Address, function string, params []byte, gas uint64) ([]byte, *CallInfo, error) {
	callInfo := &CallInfo{
		Contract:        contract,
		Actor:           testAddress(0xaa),
		FunctionName:    function,
		Params:          params,
		Gas:             gas,
		Height:          1,
		Timestamp:       1700000000,
		ProtocolVersion: ProtocolVersion,
	}
	result, err := rt.runtime.CallContract(context.Background(), callInfo)
	return result, callInfo, err
}

// newTestMemory builds a store with an exported guest memory backed by
// a meter, for exercises that do not need a full contract.
func newTestMemory(t *testing.T, gas uint64) (*Memory, *GasMeter) {
	require := require.New(t)
	engine := wasmtime.NewEngine()
	store := wasmtime.NewStore(engine)
	mem, err := wasmtime.NewMemory(store, wasmtime.NewMemoryType(2, true, 18))
	require.NoError(err)
	meter := NewGasMeter(gas)
	return newMemory(mem, store, meter), meter
}
