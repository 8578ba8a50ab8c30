// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package common holds small value types shared by every package in the
// module: content-addressed hashes and peer identifiers.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the expected length of a block or transaction id.
const HashLength = 32

// Hash is a content-addressed 32-byte identifier, e.g. a block id or a txid.
type Hash [HashLength]byte

// BytesToHash sets the trailing HashLength bytes of b into a Hash, truncating
// from the left if b is longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "%"+string(c), h[:])
}

// PeerID identifies a connected peer. It is treated as an opaque,
// comparable, byte-viewable handle, never interpreted by the protocol
// engine beyond equality and as key material for the ShortID transform.
type PeerID [32]byte

func BytesToPeerID(b []byte) PeerID {
	var p PeerID
	if len(b) > len(p) {
		b = b[len(b)-len(p):]
	}
	copy(p[len(p)-len(b):], b)
	return p
}

func (p PeerID) Bytes() []byte { return p[:] }

func (p PeerID) String() string { return hex.EncodeToString(p[:8]) }
