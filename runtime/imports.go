// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/bytecodealliance/wasmtime-go/v14"
	"golang.org/x/exp/maps"
)

// Imports is the fixed set of functions the guest may call, grouped
// into named modules matching the guest's import declarations.
type Imports struct {
	Modules map[string]*ImportModule
}

type ImportModule struct {
	Name          string
	HostFunctions map[string]HostFunction
}

func NewImports() *Imports {
	return &Imports{Modules: map[string]*ImportModule{}}
}

func (i *Imports) AddModule(mod *ImportModule) {
	if existing, ok := i.Modules[mod.Name]; ok {
		maps.Copy(existing.HostFunctions, mod.HostFunctions)
		return
	}
	i.Modules[mod.Name] = mod
}

func (i *Imports) Clone() *Imports {
	return &Imports{Modules: maps.Clone(i.Modules)}
}

func (i *Imports) createLinker(r *WasmRuntime) (*wasmtime.Linker, error) {
	linker := wasmtime.NewLinker(r.engine)
	for moduleName, module := range i.Modules {
		for funcName, hostFunction := range module.HostFunctions {
			if err := linker.FuncNew(moduleName, funcName, hostFunction.Function.wasmType(), hostFunction.convert(r)); err != nil {
				return nil, err
			}
		}
	}
	return linker, nil
}

// HostFunction pairs one import with its fixed base cost; per-byte
// charges happen inside the function body and the region codec.
type HostFunction struct {
	Function HostFunctionType
	BaseCost uint64
}

func (f HostFunction) convert(r *WasmRuntime) func(*wasmtime.Caller, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	return func(caller *wasmtime.Caller, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
		callInfo := r.getCallInfo(caller)
		if err := callInfo.meter.Charge(f.BaseCost); err != nil {
			return nil, callInfo.trap(err)
		}
		return f.Function.call(callInfo, vals)
	}
}

type HostFunctionType interface {
	wasmType() *wasmtime.FuncType
	call(*CallInfo, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap)
}

var (
	typeI32 = wasmtime.NewValType(wasmtime.KindI32)
	typeI64 = wasmtime.NewValType(wasmtime.KindI64)

	noResult  = []wasmtime.Val{}
	nilRegion = []wasmtime.Val{wasmtime.ValI32(0)}
)

func funcType(params []*wasmtime.ValType, results []*wasmtime.ValType) *wasmtime.FuncType {
	return wasmtime.NewFuncType(params, results)
}

func (c *CallInfo) readRegionArg(v wasmtime.Val) ([]byte, error) {
	return c.inst.memory.ReadRegion(uint32(v.I32()), MaxRegionSize)
}

// RegionNoResult decodes one region argument: (i32) -> ().
type RegionNoResult func(*CallInfo, []byte) error

func (RegionNoResult) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, nil)
}

func (f RegionNoResult) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	input, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if err := f(callInfo, input); err != nil {
		return nil, callInfo.trap(err)
	}
	return noResult, nil
}

// RegionToRegion decodes one region and writes one region back:
// (i32) -> (i32). A false presence flag returns the null-pointer
// sentinel.
type RegionToRegion func(*CallInfo, []byte) ([]byte, bool, error)

func (RegionToRegion) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, []*wasmtime.ValType{typeI32})
}

func (f RegionToRegion) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	input, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	output, ok, err := f(callInfo, input)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if !ok {
		return nilRegion, nil
	}
	ptr, err := callInfo.inst.memory.WriteRegion(output)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI32(int32(ptr))}, nil
}

// RegionPairNoResult decodes two regions: (i32, i32) -> ().
type RegionPairNoResult func(*CallInfo, []byte, []byte) error

func (RegionPairNoResult) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32, typeI32}, nil)
}

func (f RegionPairNoResult) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	first, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	second, err := callInfo.readRegionArg(vals[1])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if err := f(callInfo, first, second); err != nil {
		return nil, callInfo.trap(err)
	}
	return noResult, nil
}

// RegionToI64 decodes one region and returns a raw integer:
// (i32) -> (i64).
type RegionToI64 func(*CallInfo, []byte) (int64, error)

func (RegionToI64) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, []*wasmtime.ValType{typeI64})
}

func (f RegionToI64) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	input, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	out, err := f(callInfo, input)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI64(out)}, nil
}

// RegionWithI64 decodes one region plus a raw integer: (i32, i64) -> ().
type RegionWithI64 func(*CallInfo, []byte, int64) error

func (RegionWithI64) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32, typeI64}, nil)
}

func (f RegionWithI64) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	input, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if err := f(callInfo, input, vals[1].I64()); err != nil {
		return nil, callInfo.trap(err)
	}
	return noResult, nil
}

// RegionToStatus decodes one region and returns a status code:
// (i32) -> (i32).
type RegionToStatus func(*CallInfo, []byte) (int32, error)

func (RegionToStatus) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, []*wasmtime.ValType{typeI32})
}

func (f RegionToStatus) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	input, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	status, err := f(callInfo, input)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI32(status)}, nil
}

// TripleRegionToStatus decodes three regions and returns a status code:
// (i32, i32, i32) -> (i32).
type TripleRegionToStatus func(*CallInfo, []byte, []byte, []byte) (int32, error)

func (TripleRegionToStatus) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32, typeI32, typeI32}, []*wasmtime.ValType{typeI32})
}

func (f TripleRegionToStatus) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	first, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	second, err := callInfo.readRegionArg(vals[1])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	third, err := callInfo.readRegionArg(vals[2])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	status, err := f(callInfo, first, second, third)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI32(status)}, nil
}

// RegionPairWithI32ToPacked decodes two regions plus a raw integer and
// returns a packed region: (i32, i32, i32) -> (i64). A false presence
// flag returns zero.
type RegionPairWithI32ToPacked func(*CallInfo, []byte, []byte, int32) ([]byte, bool, error)

func (RegionPairWithI32ToPacked) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32, typeI32, typeI32}, []*wasmtime.ValType{typeI64})
}

func (f RegionPairWithI32ToPacked) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	first, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	second, err := callInfo.readRegionArg(vals[1])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	output, ok, err := f(callInfo, first, second, vals[2].I32())
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if !ok {
		return []wasmtime.Val{wasmtime.ValI64(0)}, nil
	}
	ptr, err := callInfo.inst.memory.WriteRegion(output)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI64(packRegion(Region{Ptr: ptr, Len: uint32(len(output))}))}, nil
}

// RegionPairWithI32ToI32 decodes two regions plus a raw integer and
// returns a raw integer: (i32, i32, i32) -> (i32).
type RegionPairWithI32ToI32 func(*CallInfo, []byte, []byte, int32) (int32, error)

func (RegionPairWithI32ToI32) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32, typeI32, typeI32}, []*wasmtime.ValType{typeI32})
}

func (f RegionPairWithI32ToI32) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	first, err := callInfo.readRegionArg(vals[0])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	second, err := callInfo.readRegionArg(vals[1])
	if err != nil {
		return nil, callInfo.trap(err)
	}
	out, err := f(callInfo, first, second, vals[2].I32())
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI32(out)}, nil
}

// RawI32ToPacked takes one raw integer and returns a packed region:
// (i32) -> (i64). A false presence flag returns zero.
type RawI32ToPacked func(*CallInfo, int32) ([]byte, bool, error)

func (RawI32ToPacked) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, []*wasmtime.ValType{typeI64})
}

func (f RawI32ToPacked) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	output, ok, err := f(callInfo, vals[0].I32())
	if err != nil {
		return nil, callInfo.trap(err)
	}
	if !ok {
		return []wasmtime.Val{wasmtime.ValI64(0)}, nil
	}
	ptr, err := callInfo.inst.memory.WriteRegion(output)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI64(packRegion(Region{Ptr: ptr, Len: uint32(len(output))}))}, nil
}

// RawI32ToI32 passes one raw integer through: (i32) -> (i32).
type RawI32ToI32 func(*CallInfo, int32) (int32, error)

func (RawI32ToI32) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, []*wasmtime.ValType{typeI32})
}

func (f RawI32ToI32) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	out, err := f(callInfo, vals[0].I32())
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI32(out)}, nil
}

// RawI32NoResult passes one raw integer through: (i32) -> ().
type RawI32NoResult func(*CallInfo, int32) error

func (RawI32NoResult) wasmType() *wasmtime.FuncType {
	return funcType([]*wasmtime.ValType{typeI32}, nil)
}

func (f RawI32NoResult) call(callInfo *CallInfo, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	if err := f(callInfo, vals[0].I32()); err != nil {
		return nil, callInfo.trap(err)
	}
	return noResult, nil
}

// NoInputToI64 takes no arguments and returns a raw integer: () -> (i64).
type NoInputToI64 func(*CallInfo) (int64, error)

func (NoInputToI64) wasmType() *wasmtime.FuncType {
	return funcType(nil, []*wasmtime.ValType{typeI64})
}

func (f NoInputToI64) call(callInfo *CallInfo, _ []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	out, err := f(callInfo)
	if err != nil {
		return nil, callInfo.trap(err)
	}
	return []wasmtime.Val{wasmtime.ValI64(out)}, nil
}
