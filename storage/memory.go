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

package storage

import (
	"sync"

	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/state"
)

// Memory is an in-process Store, used by tests and by the "memory" storage
// driver where durability isn't needed.
type Memory struct {
	mu     sync.Mutex
	blocks map[uint64]block.Block
	tip    *encodedState
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[uint64]block.Block)}
}

func (m *Memory) Tip() (block.Header, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tip == nil {
		return block.Header{}, false
	}
	return m.tip.Tip, true
}

func (m *Memory) TipHeight() uint64 {
	h, ok := m.Tip()
	if !ok {
		return 0
	}
	return h.Height
}

func (m *Memory) BlockAt(height uint64) (block.Block, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[height]
	return b, ok
}

func (m *Memory) BlockchainState() (state.BlockchainState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tip == nil {
		return state.BlockchainState{}, false
	}
	return decodeState(*m.tip), true
}

func (m *Memory) StoreBlock(b block.Block, s state.BlockchainState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.Header.Height] = b
	e := encodeState(s)
	m.tip = &e
	return nil
}

func (m *Memory) Close() error { return nil }
