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

// Package block defines the chain's header and block types, the unit the
// sync protocol advances the local tip by.
package block

import (
	"encoding/binary"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/verifier"
	"golang.org/x/crypto/sha3"
)

// ID is the 32-byte content-addressed identifier of a Header.
type ID = common.Hash

// Header carries the minimum a block header needs for tip advancement: a
// monotonically increasing height, a millisecond timestamp, and a reference
// to its predecessor. Id is a pure function of these fields (see Header.ID).
type Header struct {
	Height       uint64
	ParentID     ID
	TimestampMs  uint64
	StateRoot    common.Hash // commitment to the post-state accumulator
	TxRoot       common.Hash // commitment to the block's transaction list
}

// ID derives the header's id deterministically from its contents. Two
// headers with identical fields always produce the same id, and the id is
// assumed injective over field content.
func (h Header) ID() ID {
	d := sha3.NewLegacyKeccak256()
	var heightBytes, tsBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], h.Height)
	binary.BigEndian.PutUint64(tsBytes[:], h.TimestampMs)
	d.Write(heightBytes[:])
	d.Write(h.ParentID[:])
	d.Write(tsBytes[:])
	d.Write(h.StateRoot[:])
	d.Write(h.TxRoot[:])
	var out ID
	d.Sum(out[:0])
	return out
}

// Tx is the wire/block form of a transaction: the derived txid the mempool
// and shortid layers key off of, plus everything a receiving node needs to
// re-run the opaque verifier against its own accumulator —
// the input membership proofs and output commitments. ToVerifierTx strips
// the txid back off to get the shape state.Apply and mempool.Append want.
type Tx struct {
	TxID    common.Hash
	Inputs  []verifier.TxInput
	Outputs []accumulator.Commitment
	Payload []byte
}

// ToVerifierTx recovers the verifier.Tx this Tx was derived from.
func (t Tx) ToVerifierTx() verifier.Tx {
	return verifier.Tx{Inputs: t.Inputs, Outputs: t.Outputs, Payload: t.Payload}
}

// Signature is an opaque authenticator over a Header's ID. Its scheme
// (single-signer ECDSA over secp256k1, DER-encoded) is supplied by the
// netauth collaborator; Block never interprets its bytes.
type Signature []byte

// Block pairs a signed header with the transactions it carries.
type Block struct {
	Header    Header
	Signature Signature
	Txs       []Tx
}

// ID is a convenience for Header.ID().
func (b Block) ID() ID { return b.Header.ID() }
