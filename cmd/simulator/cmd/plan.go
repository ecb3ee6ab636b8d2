// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"
)

var (
	ErrInvalidPlan = errors.New("invalid plan")
	ErrInvalidStep = errors.New("invalid step")
)

// Plan is a yaml-described simulation: contracts to deploy, accounts to
// fund, and an ordered list of calls to make.
type Plan struct {
	Name      string     `yaml:"name"`
	Contracts []Contract `yaml:"contracts"`
	Balances  []Balance  `yaml:"balances,omitempty"`
	Steps     []Step     `yaml:"steps"`
}

type Contract struct {
	// Name is how steps refer to this contract.
	Name string `yaml:"name"`
	// Wasm is the path of the compiled module.
	Wasm string `yaml:"wasm"`
}

type Balance struct {
	Address string `yaml:"address"`
	Amount  uint64 `yaml:"amount"`
}

type Step struct {
	Description string `yaml:"description,omitempty"`
	Contract    string `yaml:"contract"`
	Function    string `yaml:"function"`
	// ParamsHex is the borsh-serialized call parameters.
	ParamsHex string `yaml:"params_hex,omitempty"`
	Gas       uint64 `yaml:"gas"`
	// ExpectError, when set, requires the call to fail with an error
	// containing this substring.
	ExpectError string `yaml:"expect_error,omitempty"`
}

func unmarshalPlan(bytes []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(bytes, &plan); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, err)
	}
	return &plan, nil
}

func (p *Plan) verify() error {
	if len(p.Contracts) == 0 {
		return fmt.Errorf("%w: no contracts", ErrInvalidPlan)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	known := make(map[string]struct{}, len(p.Contracts))
	for _, contract := range p.Contracts {
		if contract.Name == "" || contract.Wasm == "" {
			return fmt.Errorf("%w: contract needs name and wasm", ErrInvalidPlan)
		}
		known[contract.Name] = struct{}{}
	}
	for i, step := range p.Steps {
		if _, ok := known[step.Contract]; !ok {
			return fmt.Errorf("%w %d: unknown contract %q", ErrInvalidStep, i, step.Contract)
		}
		if step.Function == "" {
			return fmt.Errorf("%w %d: missing function", ErrInvalidStep, i)
		}
		if step.Gas == 0 {
			return fmt.Errorf("%w %d: missing gas", ErrInvalidStep, i)
		}
		if _, err := hex.DecodeString(step.ParamsHex); err != nil {
			return fmt.Errorf("%w %d: bad params_hex: %s", ErrInvalidStep, i, err)
		}
	}
	return nil
}
