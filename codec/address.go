// Copyright (C) 2024, Lattice Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"encoding/hex"
	"errors"

	"github.com/ava-labs/avalanchego/ids"
)

const AddressLen = 33

var ErrBadAddressLength = errors.New("invalid address length")

// Address is the 33 byte identity of an account or contract: a one byte
// type identifier followed by a 32 byte id.
type Address [AddressLen]byte

var EmptyAddress = Address{}

// CreateAddress returns the Address made from concatenating [typeID]
// with [id].
func CreateAddress(typeID uint8, id ids.ID) Address {
	a := make([]byte, AddressLen)
	a[0] = typeID
	copy(a[1:], id[:])
	return Address(a)
}

// ToAddress returns an Address from a byte slice, erroring if the length
// is wrong.
func ToAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, ErrBadAddressLength
	}
	copy(a[:], b)
	return a, nil
}

// StringToAddress returns an Address with bytes set to the hex decoding
// of s. Input shorter than AddressLen leaves the tail zeroed.
func StringToAddress(s string) Address {
	b, _ := hex.DecodeString(s)
	var a Address
	copy(a[:], b)
	return a
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}
