// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

type WasmRuntime struct {
	log    logging.Logger
	engine *wasmtime.Engine
	cfg    *Config

	contractCache cache.Cacher[string, *wasmtime.Module]

	callerLock sync.Mutex
	callerInfo map[uintptr]*CallInfo

	linker     *wasmtime.Linker
	callSafety *CallSafety

	stateManager StateManager
	api          Api
	querier      Querier
}

func NewRuntime(
	cfg *Config,
	log logging.Logger,
	stateManager StateManager,
	api Api,
	querier Querier,
) *WasmRuntime {
	hostImports := NewImports()

	runtime := &WasmRuntime{
		log:          log,
		cfg:          cfg,
		engine:       wasmtime.NewEngineWithConfig(cfg.wasmConfig),
		callerInfo:   map[uintptr]*CallInfo{},
		callSafety:   NewCallSafety(),
		stateManager: stateManager,
		api:          api,
		querier:      querier,
		contractCache: cache.NewSizedLRU(cfg.ContractCacheSize, func(id string, mod *wasmtime.Module) int {
			bytes, err := mod.Serialize()
			if err != nil {
				panic(err)
			}
			return len(id) + len(bytes)
		}),
	}

	hostImports.AddModule(NewContractModule(runtime))
	hostImports.AddModule(NewLogModule(runtime))
	hostImports.AddModule(NewMemoryModule(runtime))
	hostImports.AddModule(NewStateModule(runtime))
	hostImports.AddModule(NewBalanceModule(runtime))
	hostImports.AddModule(NewCryptoModule(runtime))
	hostImports.AddModule(NewApiModule(runtime))

	linker, err := hostImports.createLinker(runtime)
	if err != nil {
		panic(err)
	}
	runtime.linker = linker

	return runtime
}

func (r *WasmRuntime) WithDefaults(callInfo CallInfo) CallContext {
	return CallContext{r: r, defaultCallInfo: callInfo}
}

// Safety exposes the shared call guard. The simulator and the context
// facade use it for nonce queries.
func (r *WasmRuntime) Safety() *CallSafety { return r.callSafety }

func (r *WasmRuntime) StateManager() StateManager { return r.stateManager }

// CallContract runs one exported function of a contract to completion.
// Gas is drawn from callInfo's meter; a nil meter gets a fresh one
// funded with callInfo.Gas.
func (r *WasmRuntime) CallContract(ctx context.Context, callInfo *CallInfo) ([]byte, error) {
	if err := r.callSafety.CheckProtocolVersion(callInfo.ProtocolVersion); err != nil {
		return nil, err
	}
	if callInfo.meter == nil {
		callInfo.meter = NewGasMeter(callInfo.Gas)
	}
	if callInfo.events == nil {
		callInfo.events = &EventLog{}
	}
	callInfo.context = ctx

	contractModule, err := r.getModule(ctx, callInfo.Contract)
	if err != nil {
		return nil, err
	}
	inst, err := r.getInstance(contractModule, callInfo)
	if err != nil {
		return nil, err
	}
	callInfo.inst = inst

	r.setCallInfo(inst.store, callInfo)
	defer r.deleteCallInfo(inst.store)
	defer callInfo.releaseIterators()

	return inst.call(callInfo)
}

func (r *WasmRuntime) getModule(ctx context.Context, contract codec.Address) (*wasmtime.Module, error) {
	if mod, ok := r.contractCache.Get(string(contract[:])); ok {
		return mod, nil
	}
	contractBytes, err := r.stateManager.GetContractBytes(ctx, contract)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, state.ErrContractNotFound
		}
		return nil, err
	}
	mod, err := wasmtime.NewModule(r.engine, contractBytes)
	if err != nil {
		return nil, err
	}
	if err := validateModule(contractBytes, mod, r.cfg.Limits); err != nil {
		return nil, err
	}
	r.contractCache.Put(string(contract[:]), mod)
	return mod, nil
}

func (r *WasmRuntime) getInstance(contractModule *wasmtime.Module, callInfo *CallInfo) (*ContractInstance, error) {
	store := wasmtime.NewStore(r.engine)
	store.SetEpochDeadline(1)
	// growth past the page ceiling fails inside the guest even when the
	// module declares no maximum
	store.Limiter(int64(r.cfg.Limits.MaxMemoryPages)*64*units.KiB, int64(r.cfg.Limits.MaxTableSize), -1, -1, -1)

	inst, err := r.linker.Instantiate(store, contractModule)
	if err != nil {
		return nil, err
	}

	memExport := inst.GetExport(store, MemoryName)
	if memExport == nil || memExport.Memory() == nil {
		return nil, ErrMissingExportedMemory
	}

	return &ContractInstance{
		inst:    inst,
		store:   store,
		memory:  newMemory(memExport.Memory(), store, callInfo.meter),
		storage: r.stateManager.ContractStorage(callInfo.Contract),
	}, nil
}

func toMapKey(storeLike wasmtime.Storelike) uintptr {
	return reflect.ValueOf(storeLike.Context()).Pointer()
}

func (r *WasmRuntime) setCallInfo(storeLike wasmtime.Storelike, info *CallInfo) {
	r.callerLock.Lock()
	defer r.callerLock.Unlock()
	r.callerInfo[toMapKey(storeLike)] = info
}

func (r *WasmRuntime) getCallInfo(storeLike wasmtime.Storelike) *CallInfo {
	r.callerLock.Lock()
	defer r.callerLock.Unlock()
	return r.callerInfo[toMapKey(storeLike)]
}

func (r *WasmRuntime) deleteCallInfo(storeLike wasmtime.Storelike) {
	r.callerLock.Lock()
	defer r.callerLock.Unlock()
	delete(r.callerInfo, toMapKey(storeLike))
}
