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

// Package verifier realizes the zero-knowledge verifier collaborator the
// protocol engine consumes only as an opaque "verify this transaction
// against a UTXO-accumulator state" operation. This package gives the
// opaque verifier parameters a concrete body (bn254 group elements,
// created once at node construction and threaded through every
// verification call) without the engine ever depending on the curve they
// are built from.
package verifier

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"golang.org/x/crypto/sha3"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/common"
)

// ErrMalformed is returned when a transaction has neither inputs nor
// outputs, or when an input's proof is for a different commitment than the
// input names.
var ErrMalformed = errors.New("verifier: malformed transaction")

// ErrInvalidProof is returned when an input's membership proof does not
// verify against the accumulator root.
var ErrInvalidProof = errors.New("verifier: invalid membership proof")

// ErrDoubleSpend is returned when a transaction spends the same output twice.
var ErrDoubleSpend = errors.New("verifier: duplicate input within transaction")

// Params are the opaque generators for the proof system, created once at
// node construction and threaded through every verification call.
type Params struct {
	g bn254.G1Affine
	h bn254.G1Affine
}

// NewParams derives a fresh, deterministic generator pair. H is derived from
// G by hashing to a scalar so no party knows log_G(H).
func NewParams() Params {
	_, _, g1Aff, _ := bn254.Generators()
	var h bn254.G1Affine
	s := hashToScalar([]byte("chainsync/verifier/H"))
	h.ScalarMultiplication(&g1Aff, s)
	return Params{g: g1Aff, h: h}
}

func hashToScalar(msg []byte) *big.Int {
	d := sha3.NewLegacyKeccak256()
	d.Write(msg)
	sum := d.Sum(nil)
	return new(big.Int).SetBytes(sum)
}

// TxInput references one accumulator member a transaction spends, alongside
// the membership proof authorizing the spend.
type TxInput struct {
	Commitment accumulator.Commitment
	Proof      accumulator.Proof
}

// Tx is the opaque, unverified transaction body the protocol engine hands
// the verifier. Payload is forwarded untouched into the resulting Verified
// transaction's commitment.
type Tx struct {
	Inputs  []TxInput
	Outputs []accumulator.Commitment
	Payload []byte
}

// Verified is the result of a successful verification: a txid bound to the
// verifier's generators, plus the inputs/outputs the caller applies to the
// accumulator.
type Verified struct {
	TxID    common.Hash
	Inputs  []accumulator.Commitment
	Outputs []accumulator.Commitment
}

// Verify checks tx's input proofs against root and, on success, derives a
// commitment-bound txid from the verifier's generators. It never mutates
// the accumulator — applying the resulting spends/creations is the caller's
// job (state.Apply / mempool.update_state).
func (p Params) Verify(tx Tx, root common.Hash) (Verified, error) {
	if len(tx.Outputs) == 0 && len(tx.Inputs) == 0 {
		return Verified{}, ErrMalformed
	}
	seen := make(map[accumulator.Commitment]bool, len(tx.Inputs))
	inputs := make([]accumulator.Commitment, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if seen[in.Commitment] {
			return Verified{}, ErrDoubleSpend
		}
		seen[in.Commitment] = true
		if in.Proof.Leaf != in.Commitment {
			return Verified{}, ErrMalformed
		}
		if !accumulator.Verify(root, in.Proof) {
			return Verified{}, ErrInvalidProof
		}
		inputs = append(inputs, in.Commitment)
	}

	commitment := p.commit(tx)
	d := sha3.NewLegacyKeccak256()
	xb := commitment.X.Bytes()
	yb := commitment.Y.Bytes()
	d.Write(xb[:])
	d.Write(yb[:])
	d.Write(tx.Payload)
	var txid common.Hash
	d.Sum(txid[:0])

	return Verified{TxID: txid, Inputs: inputs, Outputs: append([]accumulator.Commitment(nil), tx.Outputs...)}, nil
}

// commit folds a transaction's outputs and payload into a single group
// element under p's generators — the stand-in for the real proof system's
// commitment to the spent/created values.
func (p Params) commit(tx Tx) bn254.G1Affine {
	acc := new(bn254.G1Jac)
	for _, out := range tx.Outputs {
		s := hashToScalar(out[:])
		var term bn254.G1Jac
		term.FromAffine(&p.g)
		term.ScalarMultiplication(&term, s)
		acc.AddAssign(&term)
	}
	payloadScalar := hashToScalar(tx.Payload)
	var payloadTerm bn254.G1Jac
	payloadTerm.FromAffine(&p.h)
	payloadTerm.ScalarMultiplication(&payloadTerm, payloadScalar)
	acc.AddAssign(&payloadTerm)

	var out bn254.G1Affine
	out.FromJacobian(acc)
	return out
}
