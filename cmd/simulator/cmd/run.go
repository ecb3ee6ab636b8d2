// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/runtime"
	"github.com/lattice-labs/wasmhost/state"
)

const contractAddressTypeID = 0

type runCmd struct {
	s    *simulator
	plan *Plan

	stdinReader io.Reader
}

func newRunCmd(s *simulator) *cobra.Command {
	r := &runCmd{s: s}
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Run a simulation plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.stdinReader = cmd.InOrStdin()
			if err := r.init(args); err != nil {
				return err
			}
			return r.run(cmd.Context())
		},
	}
	return cmd
}

func (c *runCmd) init(args []string) error {
	var (
		planBytes []byte
		err       error
	)
	if args[0] == "-" {
		planBytes, err = io.ReadAll(c.stdinReader)
	} else {
		planBytes, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	c.plan, err = unmarshalPlan(planBytes)
	if err != nil {
		return err
	}
	return c.plan.verify()
}

// contractAddress derives a stable address from a plan contract name.
func contractAddress(name string) codec.Address {
	return codec.CreateAddress(contractAddressTypeID, ids.ID(hashing.ComputeHash256Array([]byte(name))))
}

func (c *runCmd) run(ctx context.Context) error {
	log := c.s.log
	manager := state.NewManager(c.s.storage)
	rt := runtime.NewRuntime(runtime.NewConfig(), log, manager, hexApi{}, noChain{})

	for _, contract := range c.plan.Contracts {
		wasmBytes, err := os.ReadFile(contract.Wasm)
		if err != nil {
			return err
		}
		addr := contractAddress(contract.Name)
		if err := manager.SetContractBytes(ctx, addr, wasmBytes); err != nil {
			return err
		}
		log.Info("deployed contract",
			zap.String("name", contract.Name),
			zap.Stringer("address", addr),
		)
	}

	for _, balance := range c.plan.Balances {
		addr, err := codec.ToAddress(mustHex(balance.Address))
		if err != nil {
			return err
		}
		if err := manager.SetBalance(ctx, addr, balance.Amount); err != nil {
			return err
		}
	}

	actor := codec.CreateAddress(1, ids.ID(hashing.ComputeHash256Array([]byte(c.plan.Name))))
	height := uint64(1)
	for i, step := range c.plan.Steps {
		callInfo := &runtime.CallInfo{
			Contract:        contractAddress(step.Contract),
			Actor:           actor,
			FunctionName:    step.Function,
			Params:          mustHex(step.ParamsHex),
			Gas:             step.Gas,
			Height:          height,
			Timestamp:       uint64(time.Now().Unix()),
			ProtocolVersion: runtime.ProtocolVersion,
		}
		result, err := rt.CallContract(ctx, callInfo)
		switch {
		case step.ExpectError != "":
			if err == nil || !strings.Contains(err.Error(), step.ExpectError) {
				return fmt.Errorf("step %d: expected error containing %q, got %v", i, step.ExpectError, err)
			}
			log.Info("step failed as expected",
				zap.Int("step", i),
				zap.Error(err),
			)
		case err != nil:
			return fmt.Errorf("step %d: %w", i, err)
		default:
			log.Info("step succeeded",
				zap.Int("step", i),
				zap.String("function", step.Function),
				zap.String("result", hex.EncodeToString(result)),
				zap.Uint64("gasUsed", callInfo.Meter().Used()),
			)
			for _, event := range callInfo.Events() {
				log.Info("event",
					zap.String("name", event.Name),
					zap.String("data", hex.EncodeToString(event.Data)),
				)
			}
		}
		height++
	}
	return nil
}

// mustHex is safe after plan verification.
func mustHex(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

// noChain is a querier for standalone simulation: every chain query
// reports absence.
type noChain struct{}

func (noChain) RawQuery(context.Context, []byte) ([]byte, error) {
	return nil, fmt.Errorf("no chain attached")
}
