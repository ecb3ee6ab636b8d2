// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/stretchr/testify/require"

	"github.com/lattice-labs/wasmhost/state"
)

func TestContextStateAccess(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	hostCtx := rt.runtime.NewContext(testAddress(0x01), testAddress(0xaa), 10, 1700000000, 1_000_000)

	require.NoError(hostCtx.StoreState([]byte("k"), []byte("v")))
	val, err := hostCtx.GetState([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), val)

	prev, err := hostCtx.DeleteState([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), prev)
	_, err = hostCtx.GetState([]byte("k"))
	require.ErrorIs(err, database.ErrNotFound)

	// deleting an absent key reports nil, not an error
	prev, err = hostCtx.DeleteState([]byte("k"))
	require.NoError(err)
	require.Nil(prev)

	require.ErrorIs(hostCtx.StoreState(make([]byte, MaxStateKeySize+1), nil), ErrStateKeyTooLarge)
}

func TestContextMetersGas(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	key, value := []byte("k"), []byte("value")

	hostCtx := rt.runtime.NewContext(testAddress(0x01), testAddress(0xaa), 10, 1700000000, 1_000_000)

	require.NoError(hostCtx.StoreState(key, value))
	storeCost := uint64(dbWriteCost) + uint64(len(key)+len(value))*gasStateStorePerByte
	require.Equal(storeCost, hostCtx.Meter().Used())

	_, err := hostCtx.GetState(key)
	require.NoError(err)
	readCost := uint64(dbReadCost) + uint64(len(key))*gasStateLoadPerByte
	require.Equal(storeCost+readCost, hostCtx.Meter().Used())

	require.NoError(hostCtx.Emit("moved", []byte{1, 2}))
	require.Equal(storeCost+readCost+uint64(emitEventCost)+gasEventBase+2*gasEventPerByte, hostCtx.Meter().Used())

	// a budget that covers the base cost but not the payload is
	// exhausted, and everything after it is rejected
	broke := rt.runtime.NewContext(testAddress(0x02), testAddress(0xaa), 10, 1700000000, dbWriteCost)
	require.ErrorIs(broke.StoreState(key, make([]byte, 1024)), ErrOutOfGas)
	_, err = broke.GetState(key)
	require.ErrorIs(err, ErrOutOfGas)
	require.ErrorIs(broke.Emit("moved", nil), ErrOutOfGas)
	_, err = broke.GetBalance(context.Background(), testAddress(0xaa))
	require.ErrorIs(err, ErrOutOfGas)
	require.ErrorIs(broke.Send(context.Background(), testAddress(0xaa), 1), ErrOutOfGas)
	_, err = broke.CallContract(context.Background(), testAddress(0x03), "echo", nil, 1_000)
	require.ErrorIs(err, ErrOutOfGas)
}

func TestContextSendConsumesNonce(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	ctx := context.Background()
	contract := testAddress(0x01)
	recipient := testAddress(0x02)
	require.NoError(rt.manager.SetBalance(ctx, contract, 100))

	hostCtx := rt.runtime.NewContext(contract, testAddress(0xaa), 10, 1700000000, 1_000_000)

	require.NoError(hostCtx.Send(ctx, recipient, 30))
	require.NoError(hostCtx.Send(ctx, recipient, 30))
	require.Equal(uint64(2), rt.runtime.Safety().Nonce(contract))

	balance, err := hostCtx.GetBalance(ctx, recipient)
	require.NoError(err)
	require.Equal(uint64(60), balance)

	require.ErrorIs(hostCtx.Send(ctx, recipient, 1000), state.ErrInsufficientBalance)
}

func TestContextCallContract(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	callee := testAddress(0x02)
	rt.registerContract(t, callee, echoContractWat)

	hostCtx := rt.runtime.NewContext(testAddress(0x01), testAddress(0xaa), 10, 1700000000, 1_000_000)

	result, err := hostCtx.CallContract(context.Background(), callee, "echo", []byte("from host"), 1_000_000)
	require.NoError(err)
	require.Equal([]byte("from host"), result)
}

func TestContextEvents(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	hostCtx := rt.runtime.NewContext(testAddress(0x01), testAddress(0xaa), 10, 1700000000, 1_000_000)

	require.NoError(hostCtx.Emit("minted", []byte{7}))
	events := hostCtx.Events()
	require.Len(events, 1)
	require.Equal("minted", events[0].Name)
	require.Equal(testAddress(0x01), events[0].Contract)

	require.ErrorIs(hostCtx.Emit("too big", make([]byte, MaxEventDataSize+1)), ErrEventDataTooLarge)
}

func TestContextAccessors(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	hostCtx := rt.runtime.NewContext(testAddress(0x01), testAddress(0xaa), 42, 1699999999, 1_000_000)

	require.Equal(testAddress(0x01), hostCtx.Contract())
	require.Equal(testAddress(0xaa), hostCtx.Actor())
	require.Equal(uint64(42), hostCtx.Height())
	require.Equal(uint64(1699999999), hostCtx.Timestamp())
}
