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

// Package state holds the chain tip together with the UTXO accumulator and
// realizes the atomic apply-block state transition.
package state

import (
	"errors"

	"golang.org/x/crypto/sha3"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/verifier"
)

// ErrWrongParent is returned when a block does not extend the current tip.
var ErrWrongParent = errors.New("state: block does not extend current tip")

// ErrRootMismatch is returned when a block's declared roots do not match
// what applying its transactions actually produces.
var ErrRootMismatch = errors.New("state: header root does not match applied state")

// BlockchainState is the node's authenticated view of the chain: the tip
// header plus the accumulator it commits to.
type BlockchainState struct {
	Tip         block.Header
	Accumulator accumulator.Accumulator
}

// Genesis builds the all-zero initial state at height 0.
func Genesis(timestampMs uint64) BlockchainState {
	return BlockchainState{
		Tip: block.Header{
			Height:      0,
			TimestampMs: timestampMs,
		},
	}
}

// Apply is the atomic state transition: it verifies every tx in txs against
// the current accumulator, checks that header.StateRoot/TxRoot are
// consistent with the result, and returns the new state plus the catchup
// needed to re-base any still-live mempool proofs.
func (s BlockchainState) Apply(header block.Header, txs []verifier.Tx, params verifier.Params) (BlockchainState, accumulator.Catchup, []verifier.Verified, error) {
	if header.Height != s.Tip.Height+1 || header.ParentID != s.Tip.ID() {
		return BlockchainState{}, accumulator.Catchup{}, nil, ErrWrongParent
	}

	root := s.Accumulator.Root()
	verified := make([]verifier.Verified, 0, len(txs))
	var adds, removes []accumulator.Commitment
	for _, tx := range txs {
		vtx, err := params.Verify(tx, root)
		if err != nil {
			return BlockchainState{}, accumulator.Catchup{}, nil, err
		}
		verified = append(verified, vtx)
		adds = append(adds, vtx.Outputs...)
		removes = append(removes, vtx.Inputs...)
	}

	newAcc, catchup := s.Accumulator.ApplyBatch(adds, removes)

	if header.StateRoot != newAcc.Root() {
		return BlockchainState{}, accumulator.Catchup{}, nil, ErrRootMismatch
	}
	if header.TxRoot != txRoot(verified) {
		return BlockchainState{}, accumulator.Catchup{}, nil, ErrRootMismatch
	}

	newState := BlockchainState{Tip: header, Accumulator: newAcc}
	return newState, catchup, verified, nil
}

// txRoot derives a deterministic commitment to an ordered list of verified
// transaction ids.
func txRoot(vtxs []verifier.Verified) common.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, v := range vtxs {
		d.Write(v.TxID[:])
	}
	var out common.Hash
	d.Sum(out[:0])
	return out
}

// TxRoot exposes txRoot for callers (e.g. create_block) that need to seal a
// header before Apply has verified it.
func TxRoot(vtxs []verifier.Verified) common.Hash { return txRoot(vtxs) }
