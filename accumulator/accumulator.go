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

// Package accumulator realizes the UTXO accumulator collaborator: a compact,
// hash-based set of unspent output commitments with membership proofs and a
// batch "catchup" update that re-bases proofs after a block is applied.
// Everything about the commitments themselves (what they commit to) is
// opaque here; that is the verifier collaborator's concern, not this
// package's.
package accumulator

import (
	"sort"

	"github.com/probenet/chainsync/common"
	"golang.org/x/crypto/sha3"
)

// Commitment is an opaque 32-byte handle to one unspent output.
type Commitment = common.Hash

// Accumulator is an immutable, content-addressed set of commitments.
type Accumulator struct {
	leaves []Commitment // sorted, for a deterministic root
}

// Empty is the accumulator with no members (the genesis state).
var Empty = Accumulator{}

// New builds an accumulator over the given commitments.
func New(leaves []Commitment) Accumulator {
	cp := append([]Commitment(nil), leaves...)
	sort.Slice(cp, func(i, j int) bool { return less(cp[i], cp[j]) })
	return Accumulator{leaves: cp}
}

func less(a, b Commitment) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Len reports the number of members.
func (a Accumulator) Len() int { return len(a.leaves) }

// Leaves returns a copy of the accumulator's current member set, in sorted
// order. Used by storage to persist the full set alongside the root, so a
// restarted node can rebuild membership proofs without replaying history.
func (a Accumulator) Leaves() []Commitment {
	return append([]Commitment(nil), a.leaves...)
}

// Contains reports whether c is a current member.
func (a Accumulator) Contains(c Commitment) bool {
	i := sort.Search(len(a.leaves), func(i int) bool { return !less(a.leaves[i], c) })
	return i < len(a.leaves) && a.leaves[i] == c
}

// Root is a Merkle commitment to the member set, used as the block header's
// StateRoot.
func (a Accumulator) Root() common.Hash {
	if len(a.leaves) == 0 {
		return common.Hash{}
	}
	level := make([][32]byte, len(a.leaves))
	for i, l := range a.leaves {
		level[i] = l
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha3.NewLegacyKeccak256()
			h.Write(level[i][:])
			if i+1 < len(level) {
				h.Write(level[i+1][:])
			} else {
				h.Write(level[i][:]) // odd node duplicated, standard Merkle padding
			}
			var out [32]byte
			h.Sum(out[:0])
			next = append(next, out)
		}
		level = next
	}
	return level[0]
}

// Proof is a Merkle inclusion proof for one commitment.
type Proof struct {
	Leaf    Commitment
	Index   int
	Path    []common.Hash // sibling hashes, leaf to root
	RightAt []bool        // RightAt[i] true if Path[i] is the right sibling
}

// ErrNotMember is returned by Prove when the commitment is absent.
var ErrNotMember = errNotMember{}

type errNotMember struct{}

func (errNotMember) Error() string { return "accumulator: commitment is not a member" }

// Prove builds a membership proof for c.
func (a Accumulator) Prove(c Commitment) (Proof, error) {
	idx := sort.Search(len(a.leaves), func(i int) bool { return !less(a.leaves[i], c) })
	if idx >= len(a.leaves) || a.leaves[idx] != c {
		return Proof{}, ErrNotMember
	}
	level := make([][32]byte, len(a.leaves))
	for i, l := range a.leaves {
		level[i] = l
	}
	var path []common.Hash
	var rightAt []bool
	i := idx
	for len(level) > 1 {
		var sibling [32]byte
		isRight := false
		if i%2 == 0 {
			if i+1 < len(level) {
				sibling = level[i+1]
			} else {
				sibling = level[i]
			}
			isRight = true
		} else {
			sibling = level[i-1]
			isRight = false
		}
		path = append(path, sibling)
		rightAt = append(rightAt, isRight)

		next := make([][32]byte, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			h := sha3.NewLegacyKeccak256()
			h.Write(level[j][:])
			if j+1 < len(level) {
				h.Write(level[j+1][:])
			} else {
				h.Write(level[j][:])
			}
			var out [32]byte
			h.Sum(out[:0])
			next = append(next, out)
		}
		level = next
		i /= 2
	}
	return Proof{Leaf: c, Index: idx, Path: path, RightAt: rightAt}, nil
}

// Verify checks p against root.
func Verify(root common.Hash, p Proof) bool {
	cur := [32]byte(p.Leaf)
	for i, sib := range p.Path {
		h := sha3.NewLegacyKeccak256()
		if p.RightAt[i] {
			h.Write(cur[:])
			h.Write(sib[:])
		} else {
			h.Write(sib[:])
			h.Write(cur[:])
		}
		h.Sum(cur[:0])
	}
	return common.Hash(cur) == root
}

// Catchup is the side-artifact of a batch update: it lets every still-live
// mempool entry's proof be re-derived against the new accumulator without
// recomputing membership from scratch.
type Catchup struct {
	New     Accumulator
	Removed map[Commitment]bool
}

// ApplyBatch adds `add` and removes `remove` from a, returning the new
// accumulator and the catchup needed to re-base existing proofs onto it.
func (a Accumulator) ApplyBatch(add, remove []Commitment) (Accumulator, Catchup) {
	removed := make(map[Commitment]bool, len(remove))
	for _, r := range remove {
		removed[r] = true
	}
	next := make([]Commitment, 0, len(a.leaves)+len(add))
	for _, l := range a.leaves {
		if !removed[l] {
			next = append(next, l)
		}
	}
	next = append(next, add...)
	newAcc := New(next)
	return newAcc, Catchup{New: newAcc, Removed: removed}
}

// Rebase recomputes p against the catchup's resulting accumulator. It
// reports ok=false if the proof's leaf was consumed by the batch update.
func (c Catchup) Rebase(p Proof) (Proof, bool) {
	if c.Removed[p.Leaf] {
		return Proof{}, false
	}
	np, err := c.New.Prove(p.Leaf)
	if err != nil {
		return Proof{}, false
	}
	return np, true
}
