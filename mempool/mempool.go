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

// Package mempool maintains the ordered set of candidate transactions kept
// consistent with the current chain tip.
package mempool

import (
	"errors"
	"sync"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/state"
	"github.com/probenet/chainsync/verifier"
)

// ErrConflict classifies a non-punishable append failure: the transaction
// is already known, one of its inputs is already claimed by another
// mempool entry, or an input proof does not verify against the current
// accumulator (a stale view). None indicates misbehavior by whoever sent it.
var ErrConflict = errors.New("mempool: duplicate transaction or conflicting input")

// ValidationError wraps any append failure other than ErrConflict: a
// genuinely invalid transaction, punishable for whichever peer sent it.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return "mempool: validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Entry is one candidate transaction together with its verified form. The
// entry's input proofs are kept in step with the current accumulator by
// UpdateState.
type Entry struct {
	Tx       verifier.Tx
	Verified verifier.Verified
}

// TxID is the entry's derived identifier.
func (e Entry) TxID() common.Hash { return e.Verified.TxID }

// BlockTx is the entry's block-transaction form, the shape sent over the
// wire in Block and MempoolTxs messages.
func (e Entry) BlockTx() block.Tx {
	return block.Tx{
		TxID:    e.Verified.TxID,
		Inputs:  e.Tx.Inputs,
		Outputs: e.Tx.Outputs,
		Payload: e.Tx.Payload,
	}
}

// Mempool is an ordered set of verified entries sealed by a tip header and
// a timestamp. All operations are safe for concurrent use, though the
// protocol engine in practice only ever calls them under its own lock.
type Mempool struct {
	mu          sync.Mutex
	params      verifier.Params
	tip         block.Header
	timestampMs uint64
	accumulator accumulator.Accumulator

	order   []common.Hash
	entries map[common.Hash]Entry
	spent   map[accumulator.Commitment]bool
}

// New builds a mempool sealed at s's tip, with the given initial timestamp.
func New(s state.BlockchainState, timestampMs uint64, params verifier.Params) *Mempool {
	return &Mempool{
		params:      params,
		tip:         s.Tip,
		timestampMs: timestampMs,
		accumulator: s.Accumulator,
		entries:     make(map[common.Hash]Entry),
		spent:       make(map[accumulator.Commitment]bool),
	}
}

// Append verifies tx against the mempool's current accumulator and, on
// success, inserts it. A conflicting or duplicate tx returns ErrConflict
// (non-punishable); any other failure returns a *ValidationError
// (punishable for whoever sent it).
func (m *Mempool) Append(tx verifier.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vtx, err := m.params.Verify(tx, m.accumulator.Root())
	if err != nil {
		if errors.Is(err, verifier.ErrInvalidProof) {
			// The sender's view of the accumulator is stale, not malicious.
			return ErrConflict
		}
		return &ValidationError{Err: err}
	}
	if _, exists := m.entries[vtx.TxID]; exists {
		return ErrConflict
	}
	for _, in := range vtx.Inputs {
		if m.spent[in] {
			return ErrConflict
		}
	}

	m.entries[vtx.TxID] = Entry{Tx: tx, Verified: vtx}
	m.order = append(m.order, vtx.TxID)
	for _, in := range vtx.Inputs {
		m.spent[in] = true
	}
	return nil
}

// UpdateTimestamp advances the mempool's internal clock for timelock
// validation. It is clamped monotone: a call with an earlier timestamp is a
// no-op.
func (m *Mempool) UpdateTimestamp(ms uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms > m.timestampMs {
		m.timestampMs = ms
	}
}

// UpdateState re-bases every entry's input proofs onto newState's
// accumulator, via catchup, dropping entries whose inputs were consumed.
// Calling UpdateState again with the state it just converged to is a no-op
// (idempotent).
func (m *Mempool) UpdateState(newState state.BlockchainState, catchup accumulator.Catchup) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newOrder := make([]common.Hash, 0, len(m.order))
	newSpent := make(map[accumulator.Commitment]bool, len(m.spent))
	for _, txid := range m.order {
		e := m.entries[txid]
		rebased := make([]verifier.TxInput, len(e.Tx.Inputs))
		ok := true
		for i, in := range e.Tx.Inputs {
			np, rok := catchup.Rebase(in.Proof)
			if !rok {
				ok = false
				break
			}
			rebased[i] = verifier.TxInput{Commitment: in.Commitment, Proof: np}
		}
		// An entry whose outputs are already members was included in the
		// block that produced newState; keeping it would double-create them.
		for _, out := range e.Verified.Outputs {
			if newState.Accumulator.Contains(out) {
				ok = false
				break
			}
		}
		if !ok {
			delete(m.entries, txid)
			continue
		}
		e.Tx.Inputs = rebased
		m.entries[txid] = e
		newOrder = append(newOrder, txid)
		for _, in := range rebased {
			newSpent[in.Commitment] = true
		}
	}
	m.order = newOrder
	m.spent = newSpent
	m.tip = newState.Tip
	m.accumulator = newState.Accumulator
}

// MakeBlock converts the entire current mempool into a hypothetical block,
// returning the state that would result and its catchup. It leaves the
// mempool unchanged; the caller applies the result via a subsequent
// UpdateState.
func (m *Mempool) MakeBlock() (state.BlockchainState, accumulator.Catchup) {
	m.mu.Lock()
	defer m.mu.Unlock()

	verified := make([]verifier.Verified, 0, len(m.order))
	var adds, removes []accumulator.Commitment
	for _, txid := range m.order {
		e := m.entries[txid]
		verified = append(verified, e.Verified)
		adds = append(adds, e.Verified.Outputs...)
		removes = append(removes, e.Verified.Inputs...)
	}
	newAcc, catchup := m.accumulator.ApplyBatch(adds, removes)
	header := block.Header{
		Height:      m.tip.Height + 1,
		ParentID:    m.tip.ID(),
		TimestampMs: m.timestampMs,
		StateRoot:   newAcc.Root(),
		TxRoot:      state.TxRoot(verified),
	}
	return state.BlockchainState{Tip: header, Accumulator: newAcc}, catchup
}

// Entries returns a snapshot of the mempool's entries in insertion order.
func (m *Mempool) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.order))
	for i, txid := range m.order {
		out[i] = m.entries[txid]
	}
	return out
}

// Len reports the number of entries currently held.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Tip reports the header the mempool is currently sealed against.
func (m *Mempool) Tip() block.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip
}
