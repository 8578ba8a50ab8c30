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

// Package storagetest holds a Store conformance suite shared by every
// storage.Store implementation, parameterized over a constructor.
package storagetest

import (
	"testing"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/state"
)

// Store is the structural shape of storage.Store, restated here instead of
// imported so this package can be shared by storage's own internal tests
// without an import cycle.
type Store interface {
	Tip() (block.Header, bool)
	TipHeight() uint64
	BlockAt(height uint64) (block.Block, bool)
	BlockchainState() (state.BlockchainState, bool)
	StoreBlock(b block.Block, s state.BlockchainState) error
	Close() error
}

// TestStoreSuite runs the full conformance suite against a fresh store
// returned by new for each subtest.
func TestStoreSuite(t *testing.T, new func() Store) {
	t.Run("EmptyStoreHasNoTip", func(t *testing.T) { testEmptyStoreHasNoTip(t, new()) })
	t.Run("StoreBlockThenReadBack", func(t *testing.T) { testStoreBlockThenReadBack(t, new()) })
	t.Run("StoreBlockAdvancesTip", func(t *testing.T) { testStoreBlockAdvancesTip(t, new()) })
	t.Run("BlockchainStatePreservesAccumulator", func(t *testing.T) { testBlockchainStatePreservesAccumulator(t, new()) })
}

func testEmptyStoreHasNoTip(t *testing.T, s Store) {
	defer s.Close()
	if _, ok := s.Tip(); ok {
		t.Fatalf("expected no tip on an empty store")
	}
	if h := s.TipHeight(); h != 0 {
		t.Fatalf("expected tip height 0, got %d", h)
	}
}

func testStoreBlockThenReadBack(t *testing.T, s Store) {
	defer s.Close()
	b := block.Block{Header: block.Header{Height: 1}}
	st := state.BlockchainState{Tip: b.Header}
	if err := s.StoreBlock(b, st); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}
	got, ok := s.BlockAt(1)
	if !ok {
		t.Fatalf("expected block at height 1")
	}
	if got.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", got.Header.Height)
	}
}

func testStoreBlockAdvancesTip(t *testing.T, s Store) {
	defer s.Close()
	b := block.Block{Header: block.Header{Height: 7}}
	st := state.BlockchainState{Tip: b.Header}
	if err := s.StoreBlock(b, st); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}
	tip, ok := s.Tip()
	if !ok || tip.Height != 7 {
		t.Fatalf("expected tip height 7, got %+v (ok=%v)", tip, ok)
	}
	if s.TipHeight() != 7 {
		t.Fatalf("expected TipHeight 7, got %d", s.TipHeight())
	}
}

func testBlockchainStatePreservesAccumulator(t *testing.T, s Store) {
	defer s.Close()
	var c accumulator.Commitment
	c[0] = 0x42
	acc := accumulator.New([]accumulator.Commitment{c})
	header := block.Header{Height: 3, StateRoot: acc.Root()}
	st := state.BlockchainState{Tip: header, Accumulator: acc}

	if err := s.StoreBlock(block.Block{Header: header}, st); err != nil {
		t.Fatalf("StoreBlock: %v", err)
	}
	got, ok := s.BlockchainState()
	if !ok {
		t.Fatalf("expected a blockchain state record")
	}
	if !got.Accumulator.Contains(c) {
		t.Fatalf("expected round-tripped accumulator to contain the stored commitment")
	}
	if got.Accumulator.Root() != acc.Root() {
		t.Fatalf("round-tripped accumulator root does not match")
	}
}
