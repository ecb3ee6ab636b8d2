// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/spf13/cobra"

	"github.com/lattice-labs/wasmhost/codec"
	"github.com/lattice-labs/wasmhost/state"
)

type simulator struct {
	logLevel string
	dbPath   string

	log     logging.Logger
	storage state.Storage
	closers []func() error
}

func NewRootCmd() *cobra.Command {
	s := &simulator{}
	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "wasm contract host simulator",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return s.init()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cobra.EnablePrefixMatching = true
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.DisableAutoGenTag = true
	cmd.SilenceUsage = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "info", "log level")
	cmd.PersistentFlags().StringVar(&s.dbPath, "db", "", "pebble database path; empty runs in memory")

	cmd.AddCommand(newRunCmd(s))

	return cmd
}

func (s *simulator) init() error {
	level, err := logging.ToLevel(s.logLevel)
	if err != nil {
		return err
	}
	logFactory := logging.NewFactory(logging.Config{
		DisplayLevel: level,
		LogLevel:     logging.Off,
	})
	s.log, err = logFactory.Make("simulator")
	if err != nil {
		return err
	}

	if s.dbPath == "" {
		s.storage = state.NewMemory()
		return nil
	}
	db, err := state.NewPebble(s.dbPath)
	if err != nil {
		return err
	}
	s.storage = db
	s.closers = append(s.closers, db.Close)
	return nil
}

func (s *simulator) close() error {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			return err
		}
	}
	return nil
}

// hexApi is the simulator's address format: "sim1" followed by the hex
// encoding of the canonical 33 bytes.
type hexApi struct{}

const hexAddressPrefix = "sim1"

func (hexApi) ValidateAddress(human string) error {
	_, err := hexApi{}.CanonicalizeAddress(human)
	return err
}

func (hexApi) CanonicalizeAddress(human string) ([]byte, error) {
	if len(human) < len(hexAddressPrefix) || human[:len(hexAddressPrefix)] != hexAddressPrefix {
		return nil, fmt.Errorf("address %q lacks %s prefix", human, hexAddressPrefix)
	}
	raw, err := hex.DecodeString(human[len(hexAddressPrefix):])
	if err != nil {
		return nil, err
	}
	if len(raw) != codec.AddressLen {
		return nil, codec.ErrBadAddressLength
	}
	return raw, nil
}

func (hexApi) HumanizeAddress(canonical []byte) (string, error) {
	if len(canonical) != codec.AddressLen {
		return "", codec.ErrBadAddressLength
	}
	return hexAddressPrefix + hex.EncodeToString(canonical), nil
}
