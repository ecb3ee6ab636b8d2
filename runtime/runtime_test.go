// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-labs/wasmhost/state"
)

// watHelpers is shared guest scaffolding: a bump-allocated region
// builder and the i64 packing of a region pointer for entry returns.
const watHelpers = `
  (func $mkregion (param $src i32) (param $len i32) (result i32)
    (local $ptr i32)
    (local.set $ptr (call $allocate (i32.add (local.get $len) (i32.const 4))))
    (i32.store (local.get $ptr) (local.get $len))
    (memory.copy (i32.add (local.get $ptr) (i32.const 4)) (local.get $src) (local.get $len))
    (local.get $ptr))
  (func $pack (param $region i32) (result i64)
    (i64.or
      (i64.shl (i64.extend_i32_u (local.get $region)) (i64.const 32))
      (i64.extend_i32_u (i32.load (local.get $region)))))
`

const counterContractWat = `
(module
  (import "env" "allocate" (func $allocate (param i32) (result i32)))
  (import "state" "db_write" (func $db_write (param i32 i32)))
  (import "state" "db_read" (func $db_read (param i32) (result i32)))
  (import "state" "db_remove" (func $db_remove (param i32)))
  (memory (export "memory") 2)
  (data (i32.const 1024) "counter")
` + watHelpers + `
  (func $key (result i32)
    (call $mkregion (i32.const 1024) (i32.const 7)))

  ;; stores its params under "counter" and returns what it reads back
  (func (export "put_get") (param $args i32) (result i64)
    (local $out i32)
    (call $db_write (call $key) (local.get $args))
    (local.set $out (call $db_read (call $key)))
    (if (i32.eqz (local.get $out))
      (then (return (i64.const 0))))
    (call $pack (local.get $out)))

  (func (export "read_missing") (param $args i32) (result i64)
    (local $out i32)
    (local.set $out (call $db_read (call $key)))
    (if (i32.eqz (local.get $out))
      (then (return (i64.const 0))))
    (call $pack (local.get $out)))

  (func (export "remove") (param $args i32) (result i64)
    (call $db_remove (call $key))
    (i64.const 0))

  ;; wrong ABI on purpose
  (func (export "bad") (param i32) (result i32)
    (i32.const 0)))
`

func TestContractStateRoundTrip(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, counterContractWat)

	payload := []byte("forty-two")
	result, callInfo, err := rt.callContract(t, contract, "put_get", payload, 1_000_000)
	require.NoError(err)
	require.Equal(payload, result)
	require.NotZero(callInfo.Meter().Used())

	// the write landed in the contract's scoped storage
	stored, err := rt.manager.ContractStorage(contract).Get([]byte("counter"))
	require.NoError(err)
	require.Equal(payload, stored)

	// remove, then a read reports absence via the null sentinel
	_, _, err = rt.callContract(t, contract, "remove", nil, 1_000_000)
	require.NoError(err)
	result, _, err = rt.callContract(t, contract, "read_missing", nil, 1_000_000)
	require.NoError(err)
	require.Nil(result)
}

func TestStateIsScopedPerContract(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	first := testAddress(0x01)
	second := testAddress(0x02)
	rt.registerContract(t, first, counterContractWat)
	rt.registerContract(t, second, counterContractWat)

	_, _, err := rt.callContract(t, first, "put_get", []byte("mine"), 1_000_000)
	require.NoError(err)

	// the same key in the other contract is untouched
	result, _, err := rt.callContract(t, second, "read_missing", nil, 1_000_000)
	require.NoError(err)
	require.Nil(result)
}

func TestEntryPointNotFound(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, counterContractWat)

	_, _, err := rt.callContract(t, contract, "no_such_function", nil, 1_000_000)
	require.ErrorIs(err, ErrEntryPointNotFound)
}

func TestEntryPointWrongSignature(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, counterContractWat)

	_, _, err := rt.callContract(t, contract, "bad", nil, 1_000_000)
	require.ErrorIs(err, ErrInvalidEntryPoint)
}

func TestContractNotFound(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()

	_, _, err := rt.callContract(t, testAddress(0x7f), "put_get", nil, 1_000_000)
	require.ErrorIs(err, state.ErrContractNotFound)
}

func TestProtocolVersionMismatch(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, counterContractWat)

	callInfo := &CallInfo{
		Contract:        contract,
		FunctionName:    "put_get",
		Gas:             1_000_000,
		ProtocolVersion: ProtocolVersion + 1,
	}
	_, err := rt.runtime.CallContract(context.Background(), callInfo)
	require.ErrorIs(err, ErrInvalidProtocolVersion)
}

const abortContractWat = `
(module
  (import "env" "allocate" (func $allocate (param i32) (result i32)))
  (import "env" "abort" (func $abort (param i32)))
  (import "env" "debug" (func $debug (param i32)))
  (memory (export "memory") 2)
  (data (i32.const 1024) "boom")
` + watHelpers + `
  (func (export "always_abort") (param $args i32) (result i64)
    (call $abort (call $mkregion (i32.const 1024) (i32.const 4)))
    (i64.const 0))

  (func (export "chatty") (param $args i32) (result i64)
    (call $debug (call $mkregion (i32.const 1024) (i32.const 4)))
    (i64.const 0)))
`

func TestContractAbort(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, abortContractWat)

	_, _, err := rt.callContract(t, contract, "always_abort", nil, 1_000_000)
	require.ErrorIs(err, ErrAborted)
	require.ErrorContains(err, "boom")
}

func TestContractDebugDoesNotFail(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, abortContractWat)

	result, _, err := rt.callContract(t, contract, "chatty", nil, 1_000_000)
	require.NoError(err)
	require.Nil(result)
}

const spinContractWat = `
(module
  (memory (export "memory") 1)
  (func (export "spin") (param $args i32) (result i64)
    (loop $l (br $l))
    (i64.const 0)))
`

func TestPureComputeIsBoundedByFuel(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x01)
	rt.registerContract(t, contract, spinContractWat)

	_, callInfo, err := rt.callContract(t, contract, "spin", nil, 10_000)
	require.ErrorIs(err, ErrOutOfGas)
	require.Zero(callInfo.Meter().Remaining())
}

const callerContractWat = `
(module
  (import "env" "allocate" (func $allocate (param i32) (result i32)))
  (import "contract" "call_contract" (func $call_contract (param i32) (result i32)))
  (memory (export "memory") 2)
` + watHelpers + `
  ;; forwards its own params as the nested call description
  (func (export "delegate") (param $args i32) (result i64)
    (local $out i32)
    (local.set $out (call $call_contract (local.get $args)))
    (if (i32.eqz (local.get $out))
      (then (return (i64.const 0))))
    (call $pack (local.get $out))))
`

const echoContractWat = `
(module
  (memory (export "memory") 2)
  (func (export "echo") (param $args i32) (result i64)
    (i64.or
      (i64.shl (i64.extend_i32_u (local.get $args)) (i64.const 32))
      (i64.extend_i32_u (i32.load (local.get $args))))))
`

func TestNestedContractCall(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	caller := testAddress(0x01)
	callee := testAddress(0x02)
	rt.registerContract(t, caller, callerContractWat)
	rt.registerContract(t, callee, echoContractWat)

	params, err := serialize(callContractInput{
		Contract:     callee,
		FunctionName: "echo",
		Params:       RawBytes("ping"),
		Gas:          500_000,
	})
	require.NoError(err)

	result, callInfo, err := rt.callContract(t, caller, "delegate", params, 1_000_000)
	require.NoError(err)
	require.Zero(rt.runtime.Safety().Depth())

	callResult, err := deserialize[Result[RawBytes, CallErrorCode]](result)
	require.NoError(err)
	echoed, ok := callResult.Ok()
	require.True(ok)
	require.Equal(RawBytes("ping"), echoed)

	// the nested call's gas was burned from the caller's meter
	require.Greater(callInfo.Meter().Used(), uint64(callContractCost+gasContractCallBase))
}

func TestNestedCallOutOfGasIsRecoverable(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	caller := testAddress(0x01)
	callee := testAddress(0x02)
	rt.registerContract(t, caller, callerContractWat)
	rt.registerContract(t, callee, echoContractWat)

	params, err := serialize(callContractInput{
		Contract:     callee,
		FunctionName: "echo",
		Params:       RawBytes("x"),
		Gas:          1,
	})
	require.NoError(err)

	// the callee cannot even pay for its params region, but the caller
	// observes a clean in-band error
	result, _, err := rt.callContract(t, caller, "delegate", params, 1_000_000)
	require.NoError(err)

	callResult, err := deserialize[Result[RawBytes, CallErrorCode]](result)
	require.NoError(err)
	code, isErr := callResult.Err()
	require.True(isErr)
	require.Equal(CallErrorOutOfGas, code)
}

func TestNestedCallOutOfGasChargesCallerExactly(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	callee := testAddress(0x02)
	rt.registerContract(t, callee, echoContractWat)

	callContract := hostFn[RegionToRegion](t, NewContractModule(rt.runtime), "call_contract")
	callInfo := newHostCallInfo(0x01, 0xaa, 1_000_000)
	callInfo.ProtocolVersion = ProtocolVersion

	input := RawBytes("x")
	params, err := serialize(callContractInput{
		Contract:     callee,
		FunctionName: "echo",
		Params:       input,
		Gas:          1,
	})
	require.NoError(err)

	out, ok, err := callContract(callInfo, params)
	require.NoError(err)
	require.True(ok)

	callResult, err := deserialize[Result[RawBytes, CallErrorCode]](out)
	require.NoError(err)
	code, isErr := callResult.Err()
	require.True(isErr)
	require.Equal(CallErrorOutOfGas, code)

	// one gas cannot even pay for the callee's params region, so the
	// callee burns nothing and the caller pays exactly the call
	// surcharge
	require.Equal(uint64(gasContractCallBase)+uint64(len(input))*gasContractCallPerByte, callInfo.meter.Used())
}

func TestNestedCallMissingEntryPointIsRecoverable(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	caller := testAddress(0x01)
	callee := testAddress(0x02)
	rt.registerContract(t, caller, callerContractWat)
	rt.registerContract(t, callee, echoContractWat)

	params, err := serialize(callContractInput{
		Contract:     callee,
		FunctionName: "absent",
		Params:       RawBytes{},
		Gas:          500_000,
	})
	require.NoError(err)

	result, _, err := rt.callContract(t, caller, "delegate", params, 1_000_000)
	require.NoError(err)

	callResult, err := deserialize[Result[RawBytes, CallErrorCode]](result)
	require.NoError(err)
	code, isErr := callResult.Err()
	require.True(isErr)
	require.Equal(CallErrorNotFound, code)
}

const recursiveContractWat = `
(module
  (import "env" "allocate" (func $allocate (param i32) (result i32)))
  (import "state" "db_read" (func $db_read (param i32) (result i32)))
  (import "state" "db_write" (func $db_write (param i32 i32)))
  (import "contract" "call_contract" (func $call_contract (param i32) (result i32)))
  (memory (export "memory") 2)
  (data (i32.const 1024) "n")
  ;; borsh call description targeting this contract's own address:
  ;; 33 byte address, "recurse", empty params, 10000000 gas
  (data (i32.const 1200)
    "\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11\11"
    "\07\00\00\00recurse"
    "\00\00\00\00"
    "\80\96\98\00\00\00\00\00")
` + watHelpers + `
  ;; bumps a one byte counter, then calls itself
  (func (export "recurse") (param $args i32) (result i64)
    (local $cur i32) (local $valr i32)
    (local.set $valr (call $db_read (call $mkregion (i32.const 1024) (i32.const 1))))
    (local.set $cur (i32.const 0))
    (if (i32.ne (local.get $valr) (i32.const 0))
      (then (local.set $cur (i32.load8_u (i32.add (local.get $valr) (i32.const 4))))))
    (i32.store8 (i32.const 1100) (i32.add (local.get $cur) (i32.const 1)))
    (call $db_write
      (call $mkregion (i32.const 1024) (i32.const 1))
      (call $mkregion (i32.const 1100) (i32.const 1)))
    (drop (call $call_contract (call $mkregion (i32.const 1200) (i32.const 56))))
    (i64.const 0)))
`

func TestRecursionStopsAtMaxCallDepth(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime()
	contract := testAddress(0x11)
	rt.registerContract(t, contract, recursiveContractWat)

	// unbounded recursion: the depth guard must cut it off and unwind
	// every level
	_, _, err := rt.callContract(t, contract, "recurse", nil, 10_000_000)
	require.ErrorIs(err, ErrMaxCallDepth)
	require.Zero(rt.runtime.Safety().Depth())

	// writes below the failure point stick: one per completed level
	counter, err := rt.manager.ContractStorage(contract).Get([]byte("n"))
	require.NoError(err)
	require.Equal([]byte{MaxCallDepth + 1}, counter)
}
