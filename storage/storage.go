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

// Package storage persists the chain: every accepted block keyed by height,
// plus the blockchain state record the mempool is sealed against.
package storage

import (
	"errors"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/state"
)

// ErrNotFound names a missing block or state record. The Store methods in
// this package report absence with a false result and do not return it.
var ErrNotFound = errors.New("storage: not found")

// Store is the durable home for accepted blocks and the chain's current
// state. Implementations need not be safe for concurrent use; the protocol
// engine only ever calls them from inside its own lock.
type Store interface {
	// Tip returns the header of the highest stored block, or false if the
	// store is still at genesis.
	Tip() (block.Header, bool)

	// TipHeight returns the height of the highest stored block.
	TipHeight() uint64

	// BlockAt returns the block stored at the given height.
	BlockAt(height uint64) (block.Block, bool)

	// BlockchainState returns the state the store last converged to,
	// including the accumulator's current leaf set.
	BlockchainState() (state.BlockchainState, bool)

	// StoreBlock records b as the new tip, alongside the state it produced.
	// The accumulator catchup is not stored; the caller has already applied
	// it to the mempool.
	StoreBlock(b block.Block, s state.BlockchainState) error

	// Close releases any underlying resources.
	Close() error
}

// encodedState is the on-disk shape of a BlockchainState: the accumulator's
// commitment list is persisted explicitly rather than just its root, so a
// restarted node can rebuild membership proofs without replaying history.
type encodedState struct {
	Tip    block.Header
	Leaves []accumulator.Commitment
}

func encodeState(s state.BlockchainState) encodedState {
	return encodedState{Tip: s.Tip, Leaves: s.Accumulator.Leaves()}
}

func decodeState(e encodedState) state.BlockchainState {
	return state.BlockchainState{Tip: e.Tip, Accumulator: accumulator.New(e.Leaves)}
}
