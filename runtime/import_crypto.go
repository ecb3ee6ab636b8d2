// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/lattice-labs/wasmhost/crypto/ed25519"
	"github.com/lattice-labs/wasmhost/crypto/secp256k1"
)

const (
	secp256k1VerifyCost  = 100
	secp256k1RecoverCost = 100
	ed25519VerifyCost    = 100
	ed25519BatchCost     = 100

	verifyOK        = 0
	verifyFailed    = 1
	verifyMalformed = 2
)

type batchVerifyInput struct {
	Messages   [][]byte
	Signatures [][]byte
	PublicKeys [][]byte
}

func NewCryptoModule(*WasmRuntime) *ImportModule {
	return &ImportModule{
		Name: "env",
		HostFunctions: map[string]HostFunction{
			"secp256k1_verify": {BaseCost: secp256k1VerifyCost, Function: TripleRegionToStatus(func(callInfo *CallInfo, hash []byte, sig []byte, pubkey []byte) (int32, error) {
				if err := callInfo.meter.ChargeCrypto(len(hash)); err != nil {
					return 0, err
				}
				ok, err := secp256k1.Verify(hash, pubkey, sig)
				if err != nil {
					return verifyMalformed, nil
				}
				if !ok {
					return verifyFailed, nil
				}
				return verifyOK, nil
			})},
			"secp256k1_recover_pubkey": {BaseCost: secp256k1RecoverCost, Function: RegionPairWithI32ToPacked(func(callInfo *CallInfo, hash []byte, sig []byte, recoveryID int32) ([]byte, bool, error) {
				if err := callInfo.meter.ChargeCrypto(len(hash)); err != nil {
					return nil, false, err
				}
				pubkey, err := secp256k1.RecoverPublicKey(hash, sig, byte(recoveryID))
				if err != nil {
					return nil, false, nil
				}
				return pubkey, true, nil
			})},
			"ed25519_verify": {BaseCost: ed25519VerifyCost, Function: TripleRegionToStatus(func(callInfo *CallInfo, msg []byte, sig []byte, pubkey []byte) (int32, error) {
				if err := callInfo.meter.ChargeCrypto(len(msg)); err != nil {
					return 0, err
				}
				ok, err := ed25519.Verify(msg, pubkey, sig)
				if err != nil {
					return verifyMalformed, nil
				}
				if !ok {
					return verifyFailed, nil
				}
				return verifyOK, nil
			})},
			"ed25519_batch_verify": {BaseCost: ed25519BatchCost, Function: RegionToStatus(func(callInfo *CallInfo, input []byte) (int32, error) {
				batch, err := deserialize[batchVerifyInput](input)
				if err != nil {
					return verifyMalformed, nil
				}
				total := 0
				for _, m := range batch.Messages {
					total += len(m)
				}
				if err := callInfo.meter.ChargeCrypto(total); err != nil {
					return 0, err
				}
				ok, err := ed25519.BatchVerify(batch.Messages, batch.PublicKeys, batch.Signatures)
				if err != nil {
					return verifyMalformed, nil
				}
				if !ok {
					return verifyFailed, nil
				}
				return verifyOK, nil
			})},
		},
	}
}
