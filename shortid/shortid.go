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

// Package shortid derives compact, collision-resistant identifiers from
// 32-byte transaction ids under a (nonce, peer-id) keyed transform, used by
// the sync protocol to exchange mempool inventory cheaply.
package shortid

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Len is the fixed length, in bytes, of a ShortID. Any concrete choice
// must be consistent cluster-wide.
const Len = 6

// ID is a fixed-length projection of a txid under a (nonce, peer-id) pair.
type ID [Len]byte

// Transform derives ShortIDs for a fixed (nonce, peerID) pair. Distinct
// (nonce, peerID) pairs yield independent mappings; collisions within one
// mapping are possible and are tolerated by the protocol layer.
type Transform struct {
	nonce  uint64
	peerID []byte
}

// New builds a Transform keyed by nonce and peerID. peerID is copied.
func New(nonce uint64, peerID []byte) Transform {
	cp := make([]byte, len(peerID))
	copy(cp, peerID)
	return Transform{nonce: nonce, peerID: cp}
}

// Shorten derives the ShortID of txid under this transform's (nonce, peerID).
//
// It seeds a SHAKE256 transcript with the 8-byte big-endian nonce and the
// peer-id bytes, absorbs the txid, and squeezes the first Len bytes.
func (t Transform) Shorten(txid [32]byte) ID {
	h := sha3.NewShake256()
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], t.nonce)
	h.Write(nonceBytes[:])
	h.Write(t.peerID)
	h.Write(txid[:])

	var id ID
	h.Read(id[:])
	return id
}

// Shorten is the package-level convenience form of Transform{nonce, peerID}.Shorten(txid).
func Shorten(nonce uint64, peerID []byte, txid [32]byte) ID {
	return New(nonce, peerID).Shorten(txid)
}

// Scan splits a concatenated list of ShortIDs into fixed-size chunks,
// ignoring any trailing partial chunk.
func Scan(b []byte) []ID {
	n := len(b) / Len
	out := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		var id ID
		copy(id[:], b[i*Len:(i+1)*Len])
		out = append(out, id)
	}
	return out
}

// AtPosition returns the i-th ShortID packed into b, or ok=false if b does
// not contain a full chunk at that position.
func AtPosition(i int, b []byte) (id ID, ok bool) {
	start := i * Len
	end := start + Len
	if i < 0 || end > len(b) {
		return ID{}, false
	}
	copy(id[:], b[start:end])
	return id, true
}

// AppendTo concatenates id's bytes onto dst, returning the extended slice.
func (id ID) AppendTo(dst []byte) []byte {
	return append(dst, id[:]...)
}
